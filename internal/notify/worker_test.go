package notify

import (
	"context"
	"testing"
)

type fakeNotifyStore struct {
	pending []OTPMessage
	sent    []string
	failed  []string
	dlq     []string
}

func (f *fakeNotifyStore) ListPendingOTP(ctx context.Context, limit int) ([]OTPMessage, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeNotifyStore) MarkOTPSent(ctx context.Context, outboxID string) error {
	f.sent = append(f.sent, outboxID)
	return nil
}

func (f *fakeNotifyStore) MarkOTPFailed(ctx context.Context, outboxID, lastError string) error {
	f.failed = append(f.failed, outboxID)
	return nil
}

func (f *fakeNotifyStore) InsertDLQ(ctx context.Context, outboxID, reason string) error {
	f.dlq = append(f.dlq, outboxID)
	return nil
}

func TestRenderTemplate(t *testing.T) {
	message := OTPMessage{RecipientName: "Budi", Code: "123456", Phone: "0812"}
	got := renderTemplate("Halo {name}, kode Anda {code}", message)
	if got != "Halo Budi, kode Anda 123456" {
		t.Fatalf("unexpected render: %s", got)
	}
}

func TestRunDeliversPending(t *testing.T) {
	store := &fakeNotifyStore{
		pending: []OTPMessage{
			{OutboxID: "m1", Phone: "0812", RecipientName: "Budi", Code: "111111"},
			{OutboxID: "m2", Phone: "0813", RecipientName: "Siti", Code: "222222"},
		},
	}
	w := New(store, Config{Provider: "noop"})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(store.sent))
	}
}

func TestProviderFailureGoesToDLQAtMaxAttempts(t *testing.T) {
	store := &fakeNotifyStore{
		pending: []OTPMessage{{OutboxID: "m1", Phone: "0812", Code: "111111", Attempts: 2}},
	}
	w := New(store, Config{Provider: "fail", MaxAttempts: 3})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(store.failed))
	}
	if len(store.dlq) != 1 {
		t.Fatalf("dlq = %d, want 1", len(store.dlq))
	}
}

func TestProviderFailureBelowMaxRetriesLater(t *testing.T) {
	store := &fakeNotifyStore{
		pending: []OTPMessage{{OutboxID: "m1", Phone: "0812", Code: "111111", Attempts: 0}},
	}
	w := New(store, Config{Provider: "fail", MaxAttempts: 3})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.dlq) != 0 {
		t.Fatalf("dlq = %d, want 0", len(store.dlq))
	}
}
