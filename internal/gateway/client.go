package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feedad/kilusi-bill-sub007/internal/models"
)

// Paths are fixed for backend compatibility.
const (
	pathLogin          = "/api/v1/customer-auth/login"
	pathOTP            = "/api/v1/customer-auth/otp"
	pathVerifyOTP      = "/api/v1/customer-auth/verify-otp"
	pathLoginByPhone   = "/api/v1/customer-auth/login-by-phone"
	pathRefresh        = "/api/v1/customer-auth/refresh"
	pathSwitchAccount  = "/api/v1/customer-auth/switch-account"
	pathLoginWithToken = "/api/v1/customer-auth-nextjs/login-with-token"
	pathCustomerData   = "/api/v1/customer-auth-nextjs/get-customer-data"
)

const (
	// Bounded waits so an unresponsive backend cannot freeze the caller.
	validateTimeout = 8 * time.Second
	requestTimeout  = 10 * time.Second
)

// Client is the HTTP implementation of Gateway. Response-shape normalization
// happens here and nowhere else: the session manager only ever sees
// LoginResult.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) LoginWithCredentials(ctx context.Context, phone, secret string) (LoginResult, error) {
	payload := map[string]string{"phone": phone, "password": secret}
	return c.postForSession(ctx, pathLogin, payload, "", CodeInvalidCredentials, requestTimeout)
}

func (c *Client) RequestOTP(ctx context.Context, phone string) error {
	_, err := c.do(ctx, http.MethodPost, pathOTP, map[string]string{"phone": phone}, "", CodeInvalidCredentials, requestTimeout)
	return err
}

func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (LoginResult, error) {
	payload := map[string]string{"phone": phone, "otp": code}
	return c.postForSession(ctx, pathVerifyOTP, payload, "", CodeOTPInvalid, requestTimeout)
}

func (c *Client) LoginByPhoneOnly(ctx context.Context, phone string) (LoginResult, error) {
	return c.postForSession(ctx, pathLoginByPhone, map[string]string{"phone": phone}, "", CodeInvalidCredentials, requestTimeout)
}

func (c *Client) ExchangeLoginToken(ctx context.Context, token string) (LoginResult, error) {
	return c.postForSession(ctx, pathLoginWithToken, map[string]string{"token": token}, "", CodeTokenInvalid, validateTimeout)
}

func (c *Client) ValidateSessionToken(ctx context.Context, token string) (LoginResult, error) {
	body, err := c.do(ctx, http.MethodGet, pathCustomerData, nil, token, CodeTokenInvalid, validateTimeout)
	if err != nil {
		return LoginResult{}, err
	}
	result, err := decodeSession(body)
	if err != nil {
		return LoginResult{}, err
	}
	// The validate endpoint does not rotate the token.
	if result.Token == "" {
		result.Token = token
	}
	return result, nil
}

func (c *Client) SwitchAccount(ctx context.Context, token, targetCustomerID string) (LoginResult, error) {
	payload := map[string]string{"customer_id": targetCustomerID}
	return c.postForSession(ctx, pathSwitchAccount, payload, token, CodeNotFound, requestTimeout)
}

func (c *Client) RefreshToken(ctx context.Context, token string) (LoginResult, error) {
	return c.postForSession(ctx, pathRefresh, nil, token, CodeTokenInvalid, requestTimeout)
}

func (c *Client) postForSession(ctx context.Context, path string, payload interface{}, token, failureCode string, timeout time.Duration) (LoginResult, error) {
	body, err := c.do(ctx, http.MethodPost, path, payload, token, failureCode, timeout)
	if err != nil {
		return LoginResult{}, err
	}
	return decodeSession(body)
}

// do performs one request and returns the unwrapped data payload.
// failureCode is the AuthError code for a rejected request on this endpoint
// class; transport, timeout, and server errors map to their own codes.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, token, failureCode string, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &AuthError{Code: CodeServer, Message: err.Error()}
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &AuthError{Code: CodeNetwork, Message: err.Error()}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &AuthError{Code: CodeTimeout, Message: "server not responding"}
		}
		return nil, &AuthError{Code: CodeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthError{Code: CodeNetwork, Message: err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &AuthError{Code: CodeServer, Message: resp.Status}
		}
		return nil, &AuthError{Code: CodeServer, Message: "malformed response"}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Code: failureCode, Message: env.Message}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &AuthError{Code: CodeNotFound, Message: env.Message}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &AuthError{Code: CodeServer, Message: env.Message}
	case !env.Success:
		return nil, &AuthError{Code: failureCode, Message: env.Message}
	}

	return unwrapData(env.Data), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// unwrapData flattens the occasional double-nested data.data payload into
// the single canonical level.
func unwrapData(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return data
	}
	var inner struct {
		Data     json.RawMessage `json:"data"`
		Customer json.RawMessage `json:"customer"`
		Token    json.RawMessage `json:"token"`
	}
	if err := json.Unmarshal(data, &inner); err != nil {
		return data
	}
	if len(inner.Data) > 0 && len(inner.Customer) == 0 && len(inner.Token) == 0 {
		return unwrapData(inner.Data)
	}
	return data
}

func decodeSession(data json.RawMessage) (LoginResult, error) {
	var body struct {
		Customer       models.CustomerRecord   `json:"customer"`
		Token          string                  `json:"token"`
		SessionToken   string                  `json:"session_token"`
		LinkedAccounts []models.CustomerRecord `json:"linked_accounts"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return LoginResult{}, &AuthError{Code: CodeServer, Message: "malformed response"}
	}

	token := body.Token
	if token == "" {
		token = body.SessionToken
	}
	// Accounts may arrive beside the customer instead of inside it.
	if len(body.Customer.LinkedAccounts) == 0 && len(body.LinkedAccounts) > 0 {
		body.Customer.LinkedAccounts = body.LinkedAccounts
	}
	return LoginResult{Customer: body.Customer, Token: token}, nil
}
