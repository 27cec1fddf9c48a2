package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	pkgerrors "github.com/wekeepgrowing/settlement-service/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type cryptoTransferRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCryptoTransferRepository creates a new crypto transfer repository instance
func NewCryptoTransferRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CryptoTransferRepository {
	return &cryptoTransferRepository{
		db:     db,
		logger: logger,
	}
}

// FindSuccessful returns the successful transfer of a payment, if any
func (r *cryptoTransferRepository) FindSuccessful(ctx context.Context, paymentID uuid.UUID) (*model.CryptoTransfer, error) {
	var transfer model.CryptoTransfer

	err := r.db.WithContext(ctx).
		Where("payment_id = ? AND status = ?", paymentID, model.CryptoTransferSuccess).
		First(&transfer).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get successful crypto transfer",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to get successful crypto transfer")
	}

	return &transfer, nil
}

// ListByPayment returns every payout attempt of a payment, oldest first
func (r *cryptoTransferRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*model.CryptoTransfer, error) {
	var transfers []*model.CryptoTransfer

	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&transfers).Error
	if err != nil {
		r.logger.Error("Failed to list crypto transfers",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to list crypto transfers")
	}

	return transfers, nil
}

// Record stores a payout outcome on the transfer log, the payment and the audit log
func (r *cryptoTransferRepository) Record(ctx context.Context, transfer *model.CryptoTransfer, event *model.PaymentEvent) error {
	if transfer.ID == uuid.Nil {
		transfer.ID = uuid.New()
	}

	transferStatus := model.TransferStatusFailed
	if transfer.Status == model.CryptoTransferSuccess {
		transferStatus = model.TransferStatusSuccess
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transfer).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.Payment{}).
			Where("id = ?", transfer.PaymentID).
			Updates(map[string]interface{}{
				"transfer_status": transferStatus,
				"updated_at":      time.Now(),
			}).Error; err != nil {
			return err
		}

		if event == nil {
			return nil
		}
		event.PaymentID = transfer.PaymentID
		return tx.Create(event).Error
	})
	if err != nil {
		r.logger.Error("Failed to record crypto transfer",
			zap.String("payment_id", transfer.PaymentID.String()),
			zap.String("status", string(transfer.Status)),
			zap.Error(err))
		return pkgerrors.Wrap(err, "failed to record crypto transfer")
	}

	return nil
}
