package dispatch

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feedad/kilusi-bill-sub007/internal/credstore"
)

// SessionSource is the slice of the session manager the dispatcher needs:
// the current bearer token, and the expiry trigger. Expire reports whether
// it acted, and deduplicates internally, so concurrent in-flight failures
// collapse into a single expiry.
type SessionSource interface {
	Token() string
	Expire(message string, status int) bool
}

// Dispatcher attaches the appropriate bearer token to outgoing requests and
// watches responses for authentication failure. It is an http.RoundTripper
// so the expiry transition fires before any caller-side handling can
// swallow the error.
type Dispatcher struct {
	base     http.RoundTripper
	sessions SessionSource
	admin    credstore.AdminTokenReader
}

func New(base http.RoundTripper, sessions SessionSource, admin credstore.AdminTokenReader) *Dispatcher {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Dispatcher{base: base, sessions: sessions, admin: admin}
}

// Client returns an http.Client routed through the dispatcher with the
// standard bound on authenticated requests.
func (d *Dispatcher) Client() *http.Client {
	return &http.Client{Transport: d, Timeout: 10 * time.Second}
}

func (d *Dispatcher) RoundTrip(req *http.Request) (*http.Response, error) {
	customerScoped := isCustomerScoped(req.URL.Path)

	token, usedCustomer := d.tokenFor(customerScoped)
	out := req.Clone(req.Context())
	if token != "" && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.base.RoundTrip(out)
	if err != nil {
		return resp, err
	}

	// Auth endpoints report their failures directly to the session
	// manager; expiry here only concerns ordinary protected requests.
	if usedCustomer && !isAuthEndpoint(req.URL.Path) {
		if failed, message := authFailure(resp); failed {
			d.sessions.Expire(message, resp.StatusCode)
		}
	}
	return resp, nil
}

// tokenFor picks the credential for the request's scope. A customer-scoped
// request with no customer session falls back to the admin token: some
// endpoints are dual-purpose and this mirrors long-standing behavior.
func (d *Dispatcher) tokenFor(customerScoped bool) (string, bool) {
	if customerScoped {
		if token := d.sessions.Token(); token != "" {
			return token, true
		}
		if d.admin != nil {
			if token, ok := d.admin.ReadAdminToken(); ok {
				return token, false
			}
		}
		return "", true
	}
	if d.admin != nil {
		if token, ok := d.admin.ReadAdminToken(); ok {
			return token, false
		}
	}
	return "", false
}

// authFailure reports whether a response signals an authentication or
// authorization failure: HTTP 401, or a response envelope with success set
// to false. The body is restored so downstream decoding still works.
func authFailure(resp *http.Response) (bool, string) {
	if resp.StatusCode == http.StatusUnauthorized {
		return true, envelopeMessage(resp)
	}
	if resp.StatusCode < http.StatusBadRequest {
		return false, ""
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return false, ""
	}
	env, ok := sniffEnvelope(resp)
	if !ok || env.Success == nil || *env.Success {
		return false, ""
	}
	return true, env.Message
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func envelopeMessage(resp *http.Response) string {
	env, ok := sniffEnvelope(resp)
	if !ok {
		return ""
	}
	return env.Message
}

func sniffEnvelope(resp *http.Response) (envelope, bool) {
	if resp.Body == nil {
		return envelope{}, false
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func isCustomerScoped(path string) bool {
	return strings.HasPrefix(path, "/api/v1/customer")
}

func isAuthEndpoint(path string) bool {
	return strings.HasPrefix(path, "/api/v1/customer-auth")
}
