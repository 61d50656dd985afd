package credstore

import (
	"github.com/feedad/kilusi-bill-sub007/internal/models"
)

// Key names are stable for compatibility with previously persisted state.
const (
	KeyToken    = "customer_token"
	KeyCustomer = "customer_data"
	KeyAccounts = "customer_accounts"
	KeyAdmin    = "admin_session"
)

// Store persists the customer session for one device. Read never fails on
// malformed data; a record that cannot be decoded is treated as absent.
type Store interface {
	// Read returns the stored session, or ok=false when either the token
	// or the customer record is missing or undecodable.
	Read() (models.Session, bool)
	// Write overwrites the token, active customer, and linked accounts.
	Write(session models.Session) error
	// WriteLinkedAccounts updates only the accounts list, leaving the
	// token and active customer untouched.
	WriteLinkedAccounts(accounts []models.CustomerRecord) error
	// Clear removes all session keys.
	Clear() error
}

// AdminTokenReader reads the back-office operator token, which lives in a
// separate record so a customer session and an admin session in the same
// environment do not clobber each other.
type AdminTokenReader interface {
	ReadAdminToken() (string, bool)
}
