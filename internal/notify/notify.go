package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"toolroom/internal/domain"
	"toolroom/internal/repo"
)

// StoreNotifier records notifications in the workspace database. Delivery to
// an actual channel (email, push) is someone else's job; webhooks re-expose
// the activity feed for that.
type StoreNotifier struct {
	Repo   repo.Repo
	Logger *log.Logger
}

func (n StoreNotifier) logger() *log.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return log.Default()
}

// Notify is fire-and-forget: a failed write is logged and dropped, never
// surfaced to the workflow transition that triggered it.
func (n StoreNotifier) Notify(ctx context.Context, userID, message string) {
	err := n.Repo.InsertNotification(ctx, domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		n.logger().Printf("notify: %v", err)
	}
}
