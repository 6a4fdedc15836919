package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/amqp"
)

type fakeAuditStore struct {
	appended []string
	err      error
}

func (f *fakeAuditStore) AppendAuditEvent(ctx context.Context, action, transactionID, ownerID string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, action+":"+transactionID+":"+ownerID)
	return nil
}

func TestHandleEvent(t *testing.T) {
	store := &fakeAuditStore{}
	w := NewAuditWorker(store)

	ev := amqp.NewTransactionEvent(amqp.ActionCreated, "tx-1", "alice")
	if err := w.HandleEvent(ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.appended) != 1 || store.appended[0] != "created:tx-1:alice" {
		t.Fatalf("appended: %v", store.appended)
	}
}

func TestHandleEventMalformed(t *testing.T) {
	store := &fakeAuditStore{}
	w := NewAuditWorker(store)

	cases := []*amqp.TransactionEvent{
		{TransactionID: "tx-1"},
		{Action: amqp.ActionDeleted},
	}
	for i, ev := range cases {
		if err := w.HandleEvent(ev); err == nil {
			t.Fatalf("case %d: expected an error for malformed event", i)
		}
	}
	if len(store.appended) != 0 {
		t.Fatalf("malformed events must not reach the store: %v", store.appended)
	}
}

func TestHandleEventStoreFailure(t *testing.T) {
	store := &fakeAuditStore{err: errors.New("disk full")}
	w := NewAuditWorker(store)

	ev := amqp.NewTransactionEvent(amqp.ActionUpdated, "tx-1", "alice")
	if err := w.HandleEvent(ev); err == nil {
		t.Fatal("expected the store failure to propagate for requeue")
	}
}
