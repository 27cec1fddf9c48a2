package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/settlement-service/internal/domain/entity"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
)

// StatusTransition is a compare-and-swap update of a payment status. The update
// applies only while the row still has ExpectedVersion and one of From.
type StatusTransition struct {
	PaymentID       uuid.UUID
	ExpectedVersion int64
	From            []model.PaymentStatus
	To              model.PaymentStatus

	// AppendGatewayID is added to gateway_ids unless already present.
	AppendGatewayID string
	// LatestGatewayID, when set, becomes payment_id.
	LatestGatewayID   string
	ResultCode        string
	ResultDescription string

	// Event is inserted in the same transaction. Its status fields are filled in.
	Event *model.PaymentEvent
}

// PaymentRepository is the ledger of card payments and their audit log.
type PaymentRepository interface {
	// Create inserts the payment and its creation event atomically.
	Create(ctx context.Context, payment *model.Payment, event *model.PaymentEvent) error
	// GetByID returns nil, nil when the payment does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	// FindByGatewayID resolves any id in gateway_ids. Returns nil, nil when unknown.
	FindByGatewayID(ctx context.Context, gatewayID string) (*model.Payment, error)
	ListByUser(ctx context.Context, filter entity.HistoryFilter) ([]*model.Payment, int64, error)
	ListStale(ctx context.Context, statuses []model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Payment, error)

	// Transition returns the updated payment or errors.ErrStatusConflict.
	Transition(ctx context.Context, t *StatusTransition) (*model.Payment, error)
	// ClaimTransfer moves transfer_status from none or failed to pending. False means another attempt holds it.
	ClaimTransfer(ctx context.Context, paymentID uuid.UUID) (bool, error)

	AppendEvent(ctx context.Context, event *model.PaymentEvent) error
	ListEvents(ctx context.Context, paymentID uuid.UUID) ([]*model.PaymentEvent, error)
}
