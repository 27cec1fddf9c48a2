package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	pkgerrors "github.com/wekeepgrowing/settlement-service/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores a notification; a redelivered payload returns the stored row
func (r *webhookRepository) Save(ctx context.Context, notification *model.WebhookNotification) (*model.WebhookNotification, error) {
	if notification.Status == "" {
		notification.Status = model.WebhookStatusPending
	}

	// Use ON CONFLICT to handle duplicate deliveries
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payload_hash"}},
			DoNothing: true,
		}).
		Create(notification).Error
	if err != nil {
		r.logger.Error("Failed to save webhook notification",
			zap.String("gateway_id", notification.GatewayID),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to save webhook notification")
	}

	var stored model.WebhookNotification
	if err := r.db.WithContext(ctx).
		Where("payload_hash = ?", notification.PayloadHash).
		First(&stored).Error; err != nil {
		r.logger.Error("Failed to load webhook notification",
			zap.String("payload_hash", notification.PayloadHash),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to load webhook notification")
	}

	return &stored, nil
}

// MarkProcessing records a processing attempt
func (r *webhookRepository) MarkProcessing(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.WebhookNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   model.WebhookStatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as processing",
			zap.Int64("id", id),
			zap.Error(result.Error))
		return pkgerrors.Wrap(result.Error, "failed to mark webhook as processing")
	}

	if result.RowsAffected == 0 {
		return pkgerrors.NewAppError(pkgerrors.ErrNotFound, fmt.Sprintf("webhook notification not found: %d", id), nil)
	}

	return nil
}

// MarkCompleted marks a webhook notification as processed
func (r *webhookRepository) MarkCompleted(ctx context.Context, id int64, outcome string) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.WebhookStatusCompleted,
			"outcome":      outcome,
			"processed_at": &now,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as processed",
			zap.Int64("id", id),
			zap.Error(result.Error))
		return pkgerrors.Wrap(result.Error, "failed to mark webhook as processed")
	}

	if result.RowsAffected == 0 {
		return pkgerrors.NewAppError(pkgerrors.ErrNotFound, fmt.Sprintf("webhook notification not found: %d", id), nil)
	}

	return nil
}

// MarkFailed marks a webhook notification as failed
func (r *webhookRepository) MarkFailed(ctx context.Context, id int64, err error) error {
	errorMsg := err.Error()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.WebhookStatusFailed,
			"last_error": &errorMsg,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as failed",
			zap.Int64("id", id),
			zap.Error(result.Error))
		return pkgerrors.Wrap(result.Error, "failed to mark webhook as failed")
	}

	return nil
}
