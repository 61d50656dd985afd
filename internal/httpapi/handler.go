package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/feedad/kilusi-bill-sub007/internal/models"
	"github.com/feedad/kilusi-bill-sub007/internal/store"
)

type Handler struct {
	store store.Store
	// phoneLoginSecret gates the phone-only login bypass. Empty disables
	// the route entirely; it must never be publicly reachable.
	phoneLoginSecret string
}

func NewHandler(store store.Store, phoneLoginSecret string) *Handler {
	return &Handler{store: store, phoneLoginSecret: phoneLoginSecret}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/customer-auth/login", h.handleLogin)
	mux.HandleFunc("/api/v1/customer-auth/otp", h.handleRequestOTP)
	mux.HandleFunc("/api/v1/customer-auth/verify-otp", h.handleVerifyOTP)
	mux.HandleFunc("/api/v1/customer-auth/login-by-phone", h.handleLoginByPhone)
	mux.HandleFunc("/api/v1/customer-auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/v1/customer-auth/switch-account", h.handleSwitchAccount)
	mux.HandleFunc("/api/v1/customer-auth-nextjs/login-with-token", h.handleLoginWithToken)
	mux.HandleFunc("/api/v1/customer-auth-nextjs/get-customer-data", h.handleGetCustomerData)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type sessionData struct {
	Customer models.CustomerRecord `json:"customer"`
	Token    string                `json:"token,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Password == "" {
		writeFail(w, http.StatusBadRequest, "phone and password are required")
		return
	}

	result, err := h.store.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSession(w, result)
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Phone string `json:"phone"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		writeFail(w, http.StatusBadRequest, "phone is required")
		return
	}

	if err := h.store.IssueOTP(r.Context(), req.Phone); err != nil {
		// Do not reveal whether the phone is registered.
		if errors.Is(err, store.ErrCustomerNotFound) {
			writeOK(w, map[string]string{})
			return
		}
		writeStoreError(w, err)
		return
	}
	writeOK(w, map[string]string{})
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Phone string `json:"phone"`
		OTP   string `json:"otp"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.OTP = strings.TrimSpace(req.OTP)
	if req.Phone == "" || req.OTP == "" {
		writeFail(w, http.StatusBadRequest, "phone and otp are required")
		return
	}

	result, err := h.store.VerifyOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSession(w, result)
}

func (h *Handler) handleLoginByPhone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// Trust is established out-of-band; an unconfigured secret keeps the
	// route closed.
	if h.phoneLoginSecret == "" || r.Header.Get("X-Internal-Secret") != h.phoneLoginSecret {
		writeFail(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Phone string `json:"phone"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		writeFail(w, http.StatusBadRequest, "phone is required")
		return
	}

	result, err := h.store.LoginByPhone(r.Context(), req.Phone)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSession(w, result)
}

func (h *Handler) handleLoginWithToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeFail(w, http.StatusBadRequest, "token is required")
		return
	}

	result, err := h.store.ExchangeLoginToken(r.Context(), req.Token)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSession(w, result)
}

func (h *Handler) handleGetCustomerData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeFail(w, http.StatusUnauthorized, "missing session token")
		return
	}

	result, err := h.store.GetSession(r.Context(), token)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSession(w, result)
}

func (h *Handler) handleSwitchAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeFail(w, http.StatusUnauthorized, "missing session token")
		return
	}

	var req struct {
		CustomerID models.FlexString `json:"customer_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CustomerID == "" {
		writeFail(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	result, err := h.store.SwitchAccount(r.Context(), token, req.CustomerID.String())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSession(w, result)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeFail(w, http.StatusUnauthorized, "missing session token")
		return
	}

	result, err := h.store.RefreshToken(r.Context(), token)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeSession(w, result)
}

func writeSession(w http.ResponseWriter, result store.AuthResult) {
	customer := result.Customer
	customer.LinkedAccounts = result.Accounts
	writeOK(w, sessionData{Customer: customer, Token: result.Token})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidCredentials):
		writeFail(w, http.StatusUnauthorized, "invalid phone or password")
	case errors.Is(err, store.ErrOTPInvalid):
		writeFail(w, http.StatusUnauthorized, "otp invalid or expired")
	case errors.Is(err, store.ErrSessionNotFound):
		writeFail(w, http.StatusUnauthorized, "session invalid or expired")
	case errors.Is(err, store.ErrCustomerNotFound):
		writeFail(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, store.ErrAccessDenied):
		writeFail(w, http.StatusForbidden, "account not linked to this session")
	default:
		writeFail(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
