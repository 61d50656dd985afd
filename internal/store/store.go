package store

import (
	"context"

	"github.com/feedad/kilusi-bill-sub007/internal/models"
)

// AuthResult is what every session-issuing operation returns: the customer
// now active, the accounts linked to the same login identity, and the
// issued token. Token is empty for pure validation reads.
type AuthResult struct {
	Customer models.CustomerRecord
	Accounts []models.CustomerRecord
	Token    string
}

type Store interface {
	// Login authenticates by phone and password.
	Login(ctx context.Context, phone, password string) (AuthResult, error)
	// IssueOTP creates a one-time code for the phone and queues it for
	// delivery. The code itself never leaves the store.
	IssueOTP(ctx context.Context, phone string) error
	// VerifyOTP consumes a pending code and issues a session.
	VerifyOTP(ctx context.Context, phone, code string) (AuthResult, error)
	// LoginByPhone issues a session with no credential check. Callers gate
	// access; the store trusts them.
	LoginByPhone(ctx context.Context, phone string) (AuthResult, error)
	// ExchangeLoginToken redeems a single-use login token for a session
	// token. A second redemption of the same token fails.
	ExchangeLoginToken(ctx context.Context, token string) (AuthResult, error)
	// GetSession resolves a session token without rotating it.
	GetSession(ctx context.Context, token string) (AuthResult, error)
	// SwitchAccount issues a session for another account linked to the
	// same identity as the token's current account.
	SwitchAccount(ctx context.Context, token, customerID string) (AuthResult, error)
	// RefreshToken rotates a session token.
	RefreshToken(ctx context.Context, token string) (AuthResult, error)
}
