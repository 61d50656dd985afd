package gateway

import (
	"context"

	"github.com/feedad/kilusi-bill-sub007/internal/models"
)

// Error codes returned by gateway operations. Credential and OTP errors are
// user-correctable; token errors force a fresh login; timeout and network
// errors are transient.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeOTPInvalid         = "otp_invalid_or_expired"
	CodeTokenInvalid       = "token_invalid"
	CodeNotFound           = "not_found"
	CodeTimeout            = "timeout"
	CodeNetwork            = "network"
	CodeServer             = "server"
)

// AuthError is the typed failure result for every gateway operation. It is
// returned, never panicked, so callers can branch on Code without
// exception-style handling.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// ErrCode extracts the AuthError code from an error, or empty string.
func ErrCode(err error) string {
	if authErr, ok := err.(*AuthError); ok {
		return authErr.Code
	}
	return ""
}

// LoginResult is the canonical shape every session-issuing operation
// normalizes to, regardless of how the backend nested its payload.
type LoginResult struct {
	Customer models.CustomerRecord
	Token    string
}

// Gateway is the remote authentication service contract. All operations are
// request/response; failures are always *AuthError.
type Gateway interface {
	LoginWithCredentials(ctx context.Context, phone, secret string) (LoginResult, error)
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (LoginResult, error)
	// LoginByPhoneOnly is a trusted bypass path; it must only be reachable
	// from contexts that established trust out-of-band.
	LoginByPhoneOnly(ctx context.Context, phone string) (LoginResult, error)
	// ExchangeLoginToken redeems a single-use login token for a session.
	ExchangeLoginToken(ctx context.Context, token string) (LoginResult, error)
	// ValidateSessionToken is idempotent and repeatable.
	ValidateSessionToken(ctx context.Context, token string) (LoginResult, error)
	SwitchAccount(ctx context.Context, token, targetCustomerID string) (LoginResult, error)
	RefreshToken(ctx context.Context, token string) (LoginResult, error)
}
