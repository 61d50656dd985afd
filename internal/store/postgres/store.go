package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/feedad/kilusi-bill-sub007/internal/models"
	"github.com/feedad/kilusi-bill-sub007/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionTTL    = 8 * time.Hour
	loginTokenTTL = 15 * time.Minute
	otpTTL        = 5 * time.Minute

	kindSession = "session"
	kindLogin   = "login"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Login(ctx context.Context, phone, password string) (store.AuthResult, error) {
	var customer models.CustomerRecord
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT customer_id, customer_code, name, phone, email, address,
		       package_name, package_price, pppoe_username, status, password_hash
		FROM customers
		WHERE phone = $1 AND active = TRUE
		ORDER BY created_at
		LIMIT 1
	`, phone)
	if err := scanCustomer(row, &customer, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.AuthResult{}, store.ErrInvalidCredentials
		}
		return store.AuthResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return store.AuthResult{}, store.ErrInvalidCredentials
	}

	return s.issueSession(ctx, customer)
}

func (s *Store) IssueOTP(ctx context.Context, phone string) error {
	var name string
	row := s.pool.QueryRow(ctx, `
		SELECT name FROM customers WHERE phone = $1 AND active = TRUE LIMIT 1
	`, phone)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrCustomerNotFound
		}
		return err
	}

	code, err := randomCode()
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// A fresh request supersedes any code still pending for the phone.
	_, err = tx.Exec(ctx, `
		UPDATE otp_codes SET consumed = TRUE WHERE phone = $1 AND consumed = FALSE
	`, phone)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO otp_codes (otp_id, phone, code, expires_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), phone, code, time.Now().UTC().Add(otpTTL))
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO otp_outbox (outbox_id, phone, recipient_name, code, status, attempts)
		VALUES ($1, $2, $3, $4, 'pending', 0)
	`, uuid.NewString(), phone, name, code)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) VerifyOTP(ctx context.Context, phone, code string) (store.AuthResult, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE otp_codes
		SET consumed = TRUE
		WHERE phone = $1 AND code = $2 AND consumed = FALSE AND expires_at > NOW()
	`, phone, code)
	if err != nil {
		return store.AuthResult{}, err
	}
	if tag.RowsAffected() == 0 {
		return store.AuthResult{}, store.ErrOTPInvalid
	}
	return s.LoginByPhone(ctx, phone)
}

func (s *Store) LoginByPhone(ctx context.Context, phone string) (store.AuthResult, error) {
	var customer models.CustomerRecord
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT customer_id, customer_code, name, phone, email, address,
		       package_name, package_price, pppoe_username, status, password_hash
		FROM customers
		WHERE phone = $1 AND active = TRUE
		ORDER BY created_at
		LIMIT 1
	`, phone)
	if err := scanCustomer(row, &customer, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.AuthResult{}, store.ErrCustomerNotFound
		}
		return store.AuthResult{}, err
	}
	return s.issueSession(ctx, customer)
}

func (s *Store) ExchangeLoginToken(ctx context.Context, token string) (store.AuthResult, error) {
	var customerID string
	row := s.pool.QueryRow(ctx, `
		UPDATE customer_tokens
		SET consumed = TRUE
		WHERE token = $1 AND kind = $2 AND consumed = FALSE AND expires_at > NOW()
		RETURNING customer_id
	`, token, kindLogin)
	if err := row.Scan(&customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.AuthResult{}, store.ErrSessionNotFound
		}
		return store.AuthResult{}, err
	}

	customer, err := s.getCustomer(ctx, customerID)
	if err != nil {
		return store.AuthResult{}, err
	}
	return s.issueSession(ctx, customer)
}

func (s *Store) GetSession(ctx context.Context, token string) (store.AuthResult, error) {
	customer, err := s.sessionCustomer(ctx, token)
	if err != nil {
		return store.AuthResult{}, err
	}
	accounts, err := s.linkedAccounts(ctx, customer.Phone)
	if err != nil {
		return store.AuthResult{}, err
	}
	customer.LinkedAccounts = accounts
	return store.AuthResult{Customer: customer, Accounts: accounts}, nil
}

func (s *Store) SwitchAccount(ctx context.Context, token, customerID string) (store.AuthResult, error) {
	current, err := s.sessionCustomer(ctx, token)
	if err != nil {
		return store.AuthResult{}, err
	}

	target, err := s.getCustomer(ctx, customerID)
	if err != nil {
		return store.AuthResult{}, err
	}
	// Only accounts sharing the login identity are reachable.
	if target.Phone != current.Phone {
		return store.AuthResult{}, store.ErrAccessDenied
	}

	if err := s.revokeToken(ctx, token); err != nil {
		return store.AuthResult{}, err
	}
	return s.issueSession(ctx, target)
}

func (s *Store) RefreshToken(ctx context.Context, token string) (store.AuthResult, error) {
	customer, err := s.sessionCustomer(ctx, token)
	if err != nil {
		return store.AuthResult{}, err
	}
	if err := s.revokeToken(ctx, token); err != nil {
		return store.AuthResult{}, err
	}
	return s.issueSession(ctx, customer)
}

// CreateLoginToken issues a single-use deep-link token for a customer. Used
// by back-office flows that hand a customer a direct portal link.
func (s *Store) CreateLoginToken(ctx context.Context, customerID string) (string, error) {
	token := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customer_tokens (token, customer_id, kind, expires_at, consumed)
		VALUES ($1, $2, $3, $4, FALSE)
	`, token, customerID, kindLogin, time.Now().UTC().Add(loginTokenTTL))
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) issueSession(ctx context.Context, customer models.CustomerRecord) (store.AuthResult, error) {
	token := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customer_tokens (token, customer_id, kind, expires_at, consumed)
		VALUES ($1, $2, $3, $4, FALSE)
	`, token, customer.ID.String(), kindSession, time.Now().UTC().Add(sessionTTL))
	if err != nil {
		return store.AuthResult{}, err
	}

	accounts, err := s.linkedAccounts(ctx, customer.Phone)
	if err != nil {
		return store.AuthResult{}, err
	}
	customer.LinkedAccounts = accounts
	return store.AuthResult{Customer: customer, Accounts: accounts, Token: token}, nil
}

func (s *Store) sessionCustomer(ctx context.Context, token string) (models.CustomerRecord, error) {
	var customerID string
	row := s.pool.QueryRow(ctx, `
		SELECT customer_id
		FROM customer_tokens
		WHERE token = $1 AND kind = $2 AND consumed = FALSE AND expires_at > NOW()
	`, token, kindSession)
	if err := row.Scan(&customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CustomerRecord{}, store.ErrSessionNotFound
		}
		return models.CustomerRecord{}, err
	}
	return s.getCustomer(ctx, customerID)
}

func (s *Store) getCustomer(ctx context.Context, customerID string) (models.CustomerRecord, error) {
	var customer models.CustomerRecord
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT customer_id, customer_code, name, phone, email, address,
		       package_name, package_price, pppoe_username, status, password_hash
		FROM customers
		WHERE customer_id = $1 AND active = TRUE
	`, customerID)
	if err := scanCustomer(row, &customer, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CustomerRecord{}, store.ErrCustomerNotFound
		}
		return models.CustomerRecord{}, err
	}
	return customer, nil
}

func (s *Store) linkedAccounts(ctx context.Context, phone string) ([]models.CustomerRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id, customer_code, name, phone, email, address,
		       package_name, package_price, pppoe_username, status, password_hash
		FROM customers
		WHERE phone = $1 AND active = TRUE
		ORDER BY created_at
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.CustomerRecord
	for rows.Next() {
		var account models.CustomerRecord
		var passwordHash string
		if err := scanCustomer(rows, &account, &passwordHash); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) revokeToken(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE customer_tokens SET consumed = TRUE WHERE token = $1
	`, token)
	return err
}

func scanCustomer(row pgx.Row, customer *models.CustomerRecord, passwordHash *string) error {
	var id, code, name, phone, email, address, pkg, price, pppoe, status string
	if err := row.Scan(&id, &code, &name, &phone, &email, &address, &pkg, &price, &pppoe, &status, passwordHash); err != nil {
		return err
	}
	customer.ID = models.FlexString(id)
	customer.CustomerCode = code
	customer.Name = name
	customer.Phone = phone
	customer.Email = email
	customer.Address = address
	customer.PackageName = pkg
	customer.PackagePrice = models.FlexString(price)
	customer.PPPoEUsername = pppoe
	customer.Status = status
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
