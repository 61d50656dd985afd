package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginWithCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/customer-auth/login" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req["phone"] != "081234567890" || req["password"] != "secret" {
			t.Fatalf("unexpected payload %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"customer": map[string]interface{}{"id": 42, "name": "Budi"},
				"token":    "abc",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	result, err := client.LoginWithCredentials(context.Background(), "081234567890", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token != "abc" {
		t.Fatalf("token = %q, want abc", result.Token)
	}
	// Numeric ids normalize to strings.
	if result.Customer.ID != "42" || result.Customer.Name != "Budi" {
		t.Fatalf("unexpected customer: %+v", result.Customer)
	}
}

func TestDoubleNestedDataNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"data": map[string]interface{}{
					"customer": map[string]interface{}{"id": "99", "name": "Siti"},
					"token":    "xyz",
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	result, err := client.LoginWithCredentials(context.Background(), "0812", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Customer.ID != "99" || result.Token != "xyz" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSuccessFalseMapsToEndpointCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "invalid phone or password",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())

	_, err := client.LoginWithCredentials(context.Background(), "0812", "wrong")
	if ErrCode(err) != CodeInvalidCredentials {
		t.Fatalf("login error = %v, want invalid_credentials", err)
	}

	_, err = client.VerifyOTP(context.Background(), "0812", "000000")
	if ErrCode(err) != CodeOTPInvalid {
		t.Fatalf("verify error = %v, want otp_invalid_or_expired", err)
	}

	_, err = client.ValidateSessionToken(context.Background(), "stale")
	if ErrCode(err) != CodeTokenInvalid {
		t.Fatalf("validate error = %v, want token_invalid", err)
	}
}

func TestSuccessFalseWithOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "rejected",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.LoginWithCredentials(context.Background(), "0812", "pw")
	if ErrCode(err) != CodeInvalidCredentials {
		t.Fatalf("error = %v, want invalid_credentials", err)
	}
}

func TestServerErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.LoginWithCredentials(context.Background(), "0812", "pw")
	if ErrCode(err) != CodeServer {
		t.Fatalf("error = %v, want server", err)
	}
}

func TestTimeoutMapsToTimeoutCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the request open until the client gives up. Drain the body
		// first: the server only watches for the client disconnect (which
		// cancels r.Context()) once the request body has been consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.LoginWithCredentials(ctx, "0812", "pw")
	if ErrCode(err) != CodeTimeout {
		t.Fatalf("error = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("call took %s, bound not enforced", elapsed)
	}
}

func TestNetworkErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.LoginWithCredentials(context.Background(), "0812", "pw")
	if ErrCode(err) != CodeNetwork {
		t.Fatalf("error = %v, want network", err)
	}
}

func TestValidateKeepsTokenAndSendsBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/customer-auth-nextjs/get-customer-data" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sess-1" {
			t.Fatalf("missing bearer, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"customer": map[string]interface{}{
					"id": "42", "name": "Budi",
					"linked_accounts": []map[string]interface{}{{"id": "42"}, {"id": "99"}},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	result, err := client.ValidateSessionToken(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Token != "sess-1" {
		t.Fatalf("token = %q, validation must not rotate it", result.Token)
	}
	if len(result.Customer.LinkedAccounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(result.Customer.LinkedAccounts))
	}
}

func TestAccountsBesideCustomerAreAttached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"customer":        map[string]interface{}{"id": "42"},
				"token":           "abc",
				"linked_accounts": []map[string]interface{}{{"id": "42"}, {"id": "99"}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	result, err := client.LoginWithCredentials(context.Background(), "0812", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(result.Customer.LinkedAccounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(result.Customer.LinkedAccounts))
	}
}

func TestSessionTokenFallsBackToSessionTokenField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/customer-auth-nextjs/login-with-token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"customer":      map[string]interface{}{"id": "42"},
				"session_token": "fresh",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	result, err := client.ExchangeLoginToken(context.Background(), "deep-link")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if result.Token != "fresh" {
		t.Fatalf("token = %q, want fresh", result.Token)
	}
}
