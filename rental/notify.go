/*
notify.go - Best-effort notification sink

PURPOSE:
  Records settlement outcomes for later retrieval. Fire-and-forget: a sink
  failure is logged by the caller and never fails or rolls back the
  settlement that triggered it. Consumers read an append-only, per-user,
  timestamp-ordered sequence.
*/
package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationSink receives settlement outcomes. Injectable so additional
// channels (email, push) can be layered in without touching the orchestrator.
type NotificationSink interface {
	Notify(ctx context.Context, userID UserID, message string) error
}

// StoreSink persists notifications through the Store.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Notify(ctx context.Context, userID UserID, message string) error {
	return s.store.AppendNotification(ctx, Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
}

// ListForUser returns the user's notifications, oldest first.
func (s *StoreSink) ListForUser(ctx context.Context, userID UserID) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}
