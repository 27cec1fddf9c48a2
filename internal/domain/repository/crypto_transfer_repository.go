package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
)

// CryptoTransferRepository stores payout attempts.
type CryptoTransferRepository interface {
	// FindSuccessful returns nil, nil when the payment has no successful transfer.
	FindSuccessful(ctx context.Context, paymentID uuid.UUID) (*model.CryptoTransfer, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*model.CryptoTransfer, error)
	// Record inserts the transfer, mirrors its outcome into payments.transfer_status
	// and appends event, all in one transaction.
	Record(ctx context.Context, transfer *model.CryptoTransfer, event *model.PaymentEvent) error
}
