package notify

import (
	"context"
	"log"
	"strings"
	"time"
)

// OTPMessage is one queued one-time code waiting for delivery.
type OTPMessage struct {
	OutboxID      string
	Phone         string
	RecipientName string
	Code          string
	Attempts      int
	CreatedAt     time.Time
}

type Store interface {
	ListPendingOTP(ctx context.Context, limit int) ([]OTPMessage, error)
	MarkOTPSent(ctx context.Context, outboxID string) error
	MarkOTPFailed(ctx context.Context, outboxID, lastError string) error
	InsertDLQ(ctx context.Context, outboxID, reason string) error
}

type Config struct {
	BatchSize   int
	MaxAttempts int
	Provider    string
	Template    string
}

// Worker drains the OTP outbox and hands each message to the configured
// provider. Delivery mechanics live entirely behind the Provider interface.
type Worker struct {
	store       Store
	provider    Provider
	batchSize   int
	maxAttempts int
	template    string
}

func New(store Store, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	template := cfg.Template
	if template == "" {
		template = "Halo {name}, kode verifikasi Anda: {code}. Berlaku 5 menit."
	}
	return &Worker{
		store:       store,
		provider:    newProvider(cfg.Provider),
		batchSize:   batch,
		maxAttempts: maxAttempts,
		template:    template,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.store.ListPendingOTP(ctx, w.batchSize)
	if err != nil {
		return err
	}

	for _, message := range messages {
		if err := w.deliver(ctx, message); err != nil {
			log.Printf("otp delivery error: %v", err)
		}
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, message OTPMessage) error {
	body := renderTemplate(w.template, message)

	if err := w.provider.Send(ctx, body, message.Phone); err != nil {
		if markErr := w.store.MarkOTPFailed(ctx, message.OutboxID, err.Error()); markErr != nil {
			return markErr
		}
		if message.Attempts+1 >= w.maxAttempts {
			return w.store.InsertDLQ(ctx, message.OutboxID, "max attempts reached")
		}
		return nil
	}
	return w.store.MarkOTPSent(ctx, message.OutboxID)
}

// Start runs the worker on a fixed interval until the context is cancelled.
func Start(ctx context.Context, interval time.Duration, w *Worker) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				log.Printf("otp worker error: %v", err)
			}
		}
	}
}

func renderTemplate(template string, message OTPMessage) string {
	result := template
	result = strings.ReplaceAll(result, "{name}", message.RecipientName)
	result = strings.ReplaceAll(result, "{code}", message.Code)
	result = strings.ReplaceAll(result, "{phone}", message.Phone)
	return result
}
