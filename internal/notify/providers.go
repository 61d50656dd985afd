package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type Provider interface {
	Send(ctx context.Context, message, recipient string) error
}

func newProvider(kind string) Provider {
	switch kind {
	case "", "stub", "log":
		return logProvider{}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "whatsapp":
		url := os.Getenv("NOTIFY_WA_GATEWAY_URL")
		token := os.Getenv("NOTIFY_WA_GATEWAY_TOKEN")
		if url == "" {
			return logProvider{}
		}
		return gatewayProvider{url: url, token: token}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return gatewayProvider{url: kind}
		}
		return logProvider{}
	}
}

type logProvider struct{}

func (logProvider) Send(ctx context.Context, message, recipient string) error {
	log.Printf("send otp to %s: %s", recipient, message)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, message, recipient string) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, message, recipient string) error {
	return errors.New("provider failure")
}

// gatewayProvider posts the message to an external WhatsApp gateway.
type gatewayProvider struct {
	url   string
	token string
}

func (p gatewayProvider) Send(ctx context.Context, message, recipient string) error {
	payload := map[string]string{
		"phone":   recipient,
		"message": message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return nil
}
