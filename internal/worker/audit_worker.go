// Package worker consumes transaction events and records them in the audit
// log, giving every ledger mutation a durable trail outside the request path.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
)

// AuditStore is the slice of the record store the audit worker needs.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, action, transactionID, ownerID string, at time.Time) error
}

type AuditWorker struct {
	store AuditStore
}

func NewAuditWorker(store AuditStore) *AuditWorker {
	return &AuditWorker{store: store}
}

// HandleEvent appends one consumed event to the audit log. Returning an
// error makes the consumer nack and requeue the delivery.
func (w *AuditWorker) HandleEvent(ev *amqp.TransactionEvent) error {
	if ev.Action == "" || ev.TransactionID == "" {
		return fmt.Errorf("malformed event: action=%q transaction_id=%q", ev.Action, ev.TransactionID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.store.AppendAuditEvent(ctx, ev.Action, ev.TransactionID, ev.OwnerID, ev.Timestamp); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	slog.InfoContext(ctx, "Audit event recorded",
		"action", ev.Action,
		"transaction_id", ev.TransactionID,
		"owner_id", ev.OwnerID)
	return nil
}
