package postgres

import (
	"context"

	"github.com/feedad/kilusi-bill-sub007/internal/notify"

	"github.com/google/uuid"
)

func (s *Store) ListPendingOTP(ctx context.Context, limit int) ([]notify.OTPMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT outbox_id, phone, recipient_name, code, attempts, created_at
		FROM otp_outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []notify.OTPMessage
	for rows.Next() {
		var message notify.OTPMessage
		if err := rows.Scan(&message.OutboxID, &message.Phone, &message.RecipientName, &message.Code, &message.Attempts, &message.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) MarkOTPSent(ctx context.Context, outboxID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE otp_outbox SET status = 'sent', attempts = attempts + 1 WHERE outbox_id = $1
	`, outboxID)
	return err
}

func (s *Store) MarkOTPFailed(ctx context.Context, outboxID, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE otp_outbox
		SET status = 'pending', attempts = attempts + 1, last_error = $2
		WHERE outbox_id = $1
	`, outboxID, lastError)
	return err
}

func (s *Store) InsertDLQ(ctx context.Context, outboxID, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		UPDATE otp_outbox SET status = 'failed' WHERE outbox_id = $1
	`, outboxID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO otp_dlq (dlq_id, outbox_id, reason)
		VALUES ($1, $2, $3)
	`, uuid.NewString(), outboxID, reason)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
