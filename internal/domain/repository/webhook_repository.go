package repository

import (
	"context"

	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
)

// WebhookRepository keeps received gateway notifications.
type WebhookRepository interface {
	// Save inserts the notification unless its payload hash is known.
	// It returns the stored row, which is the existing one on a redelivery.
	Save(ctx context.Context, notification *model.WebhookNotification) (*model.WebhookNotification, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, outcome string) error
	MarkFailed(ctx context.Context, id int64, err error) error
}
