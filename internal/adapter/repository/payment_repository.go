package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/settlement-service/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	pkgerrors "github.com/wekeepgrowing/settlement-service/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a payment together with its first audit event
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment, event *model.PaymentEvent) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.ReferenceID != "" && !payment.HasGatewayID(payment.ReferenceID) {
		payment.GatewayIDs = append([]string{payment.ReferenceID}, payment.GatewayIDs...)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		event.PaymentID = payment.ID
		event.ToStatus = payment.Status
		return tx.Create(event).Error
	})
	if err != nil {
		r.logger.Error("Failed to create payment",
			zap.String("reference_id", payment.ReferenceID),
			zap.Error(err))
		return pkgerrors.Wrap(err, "failed to create payment")
	}

	return nil
}

// GetByID retrieves a payment by its internal id
func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment",
			zap.String("payment_id", id.String()),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to get payment")
	}

	return &payment, nil
}

// FindByGatewayID resolves a payment by any gateway id it has been known by
func (r *paymentRepository) FindByGatewayID(ctx context.Context, gatewayID string) (*model.Payment, error) {
	if gatewayID == "" {
		return nil, nil
	}

	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("? = ANY(gateway_ids)", gatewayID).
		Order("created_at DESC").
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to find payment by gateway id",
			zap.String("gateway_id", gatewayID),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to find payment by gateway id")
	}

	return &payment, nil
}

// ListByUser returns one page of a user's payments, newest first, and the total count
func (r *paymentRepository) ListByUser(ctx context.Context, filter entity.HistoryFilter) ([]*model.Payment, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("user_id = ?", filter.UserID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.logger.Error("Failed to count payments",
			zap.String("user_id", filter.UserID.String()),
			zap.Error(err))
		return nil, 0, pkgerrors.Wrap(err, "failed to count payments")
	}

	var payments []*model.Payment
	err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&payments).Error
	if err != nil {
		r.logger.Error("Failed to list payments",
			zap.String("user_id", filter.UserID.String()),
			zap.Error(err))
		return nil, 0, pkgerrors.Wrap(err, "failed to list payments")
	}

	return payments, total, nil
}

// ListStale returns payments in one of statuses that have not changed since updatedBefore
func (r *paymentRepository) ListStale(ctx context.Context, statuses []model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment

	query := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, updatedBefore).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&payments).Error; err != nil {
		r.logger.Error("Failed to list stale payments", zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to list stale payments")
	}

	return payments, nil
}

// Transition applies a version-checked status change and appends its event in one transaction
func (r *paymentRepository) Transition(ctx context.Context, t *domainRepo.StatusTransition) (*model.Payment, error) {
	for _, from := range t.From {
		if !from.CanTransition(t.To) {
			return nil, &domainErrors.InvalidTransitionError{From: string(from), To: string(t.To)}
		}
	}

	updates := map[string]interface{}{
		"status":     t.To,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	if t.AppendGatewayID != "" {
		updates["gateway_ids"] = gorm.Expr(
			"CASE WHEN ? = ANY(gateway_ids) THEN gateway_ids ELSE array_append(gateway_ids, ?) END",
			t.AppendGatewayID, t.AppendGatewayID)
	}
	if t.LatestGatewayID != "" {
		updates["payment_id"] = t.LatestGatewayID
	}
	if t.ResultCode != "" {
		updates["last_result_code"] = t.ResultCode
		updates["last_result_description"] = t.ResultDescription
	}

	var updated model.Payment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&updated).
			Clauses(clause.Returning{}).
			Where("id = ? AND version = ? AND status IN ?", t.PaymentID, t.ExpectedVersion, t.From).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainErrors.ErrStatusConflict
		}

		if t.Event == nil {
			return nil
		}
		t.Event.PaymentID = t.PaymentID
		t.Event.ToStatus = t.To
		return tx.Create(t.Event).Error
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrStatusConflict) {
			r.logger.Warn("Payment status transition lost compare-and-swap",
				zap.String("payment_id", t.PaymentID.String()),
				zap.Int64("expected_version", t.ExpectedVersion),
				zap.String("to", string(t.To)))
			return nil, err
		}
		r.logger.Error("Failed to transition payment status",
			zap.String("payment_id", t.PaymentID.String()),
			zap.String("to", string(t.To)),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to transition payment status")
	}

	return &updated, nil
}

// ClaimTransfer marks the payout as pending unless another attempt holds it or it succeeded
func (r *paymentRepository) ClaimTransfer(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND transfer_status IN ?", paymentID,
			[]model.TransferStatus{model.TransferStatusNone, model.TransferStatusFailed}).
		Updates(map[string]interface{}{
			"transfer_status": model.TransferStatusPending,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		r.logger.Error("Failed to claim payout",
			zap.String("payment_id", paymentID.String()),
			zap.Error(result.Error))
		return false, pkgerrors.Wrap(result.Error, "failed to claim payout")
	}

	return result.RowsAffected == 1, nil
}

// AppendEvent inserts an informational event
func (r *paymentRepository) AppendEvent(ctx context.Context, event *model.PaymentEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.logger.Error("Failed to append payment event",
			zap.String("payment_id", event.PaymentID.String()),
			zap.String("trigger", string(event.Trigger)),
			zap.Error(err))
		return pkgerrors.Wrap(err, "failed to append payment event")
	}
	return nil
}

// ListEvents returns the audit log of a payment in insertion order
func (r *paymentRepository) ListEvents(ctx context.Context, paymentID uuid.UUID) ([]*model.PaymentEvent, error) {
	var events []*model.PaymentEvent

	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		r.logger.Error("Failed to list payment events",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to list payment events")
	}

	return events, nil
}
