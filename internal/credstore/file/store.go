package file

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/feedad/kilusi-bill-sub007/internal/credstore"
	"github.com/feedad/kilusi-bill-sub007/internal/models"
)

// Store keeps each credential key in its own file under a scoped directory,
// mirroring the per-key browser storage the portal frontend uses.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Read() (models.Session, bool) {
	token, err := os.ReadFile(s.path(credstore.KeyToken))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("credstore read %s: %v", credstore.KeyToken, err)
		}
		return models.Session{}, false
	}

	raw, err := os.ReadFile(s.path(credstore.KeyCustomer))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("credstore read %s: %v", credstore.KeyCustomer, err)
		}
		return models.Session{}, false
	}

	var customer models.CustomerRecord
	if err := json.Unmarshal(raw, &customer); err != nil {
		log.Printf("credstore decode %s: %v", credstore.KeyCustomer, err)
		return models.Session{}, false
	}
	if len(token) == 0 {
		return models.Session{}, false
	}

	session := models.Session{Token: string(token), ActiveCustomer: customer}

	// Accounts are optional; a corrupt accounts file degrades to an empty
	// list rather than invalidating the session.
	if raw, err := os.ReadFile(s.path(credstore.KeyAccounts)); err == nil {
		var accounts []models.CustomerRecord
		if err := json.Unmarshal(raw, &accounts); err != nil {
			log.Printf("credstore decode %s: %v", credstore.KeyAccounts, err)
		} else {
			session.LinkedAccounts = accounts
		}
	}

	return session, true
}

func (s *Store) Write(session models.Session) error {
	customer, err := json.Marshal(session.ActiveCustomer)
	if err != nil {
		return err
	}
	if err := s.writeKey(credstore.KeyToken, []byte(session.Token)); err != nil {
		return err
	}
	if err := s.writeKey(credstore.KeyCustomer, customer); err != nil {
		return err
	}
	return s.writeAccounts(session.LinkedAccounts)
}

func (s *Store) WriteLinkedAccounts(accounts []models.CustomerRecord) error {
	return s.writeAccounts(accounts)
}

func (s *Store) Clear() error {
	for _, key := range []string{credstore.KeyToken, credstore.KeyCustomer, credstore.KeyAccounts} {
		if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ReadAdminToken reads the back-office operator token from its own record,
// a JSON blob with the token nested under a state field.
func (s *Store) ReadAdminToken() (string, bool) {
	raw, err := os.ReadFile(s.path(credstore.KeyAdmin))
	if err != nil {
		return "", false
	}
	var record struct {
		State struct {
			Token string `json:"token"`
		} `json:"state"`
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		log.Printf("credstore decode %s: %v", credstore.KeyAdmin, err)
		return "", false
	}
	if record.State.Token == "" {
		return "", false
	}
	return record.State.Token, true
}

func (s *Store) writeAccounts(accounts []models.CustomerRecord) error {
	if accounts == nil {
		accounts = []models.CustomerRecord{}
	}
	raw, err := json.Marshal(accounts)
	if err != nil {
		return err
	}
	return s.writeKey(credstore.KeyAccounts, raw)
}

func (s *Store) writeKey(key string, value []byte) error {
	return os.WriteFile(s.path(key), value, 0o600)
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}
