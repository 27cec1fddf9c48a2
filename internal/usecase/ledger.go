package usecase

import (
	"context"

	"github.com/wekeepgrowing/settlement-service/internal/domain/event"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// statusChange describes one audited ledger transition.
type statusChange struct {
	Trigger model.EventTrigger
	Actor   string

	// GatewayID is appended to gateway_ids and recorded on the event.
	GatewayID string
	// Latest makes GatewayID the payment_id of the record.
	Latest bool

	ResultCode        string
	ResultDescription string
	Metadata          model.JSONB
}

// statusLedger applies compare-and-swap transitions and announces the committed ones.
type statusLedger struct {
	payments  repository.PaymentRepository
	publisher event.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func newStatusLedger(payments repository.PaymentRepository, publisher event.Publisher, m *metrics.Metrics, logger *zap.Logger) *statusLedger {
	if publisher == nil {
		publisher = event.NewNoopPublisher()
	}
	return &statusLedger{
		payments:  payments,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// transition moves p to status to, expecting p's current version and status.
func (l *statusLedger) transition(ctx context.Context, p *model.Payment, to model.PaymentStatus, c statusChange) (*model.Payment, error) {
	from := p.Status

	t := &repository.StatusTransition{
		PaymentID:         p.ID,
		ExpectedVersion:   p.Version,
		From:              []model.PaymentStatus{from},
		To:                to,
		AppendGatewayID:   c.GatewayID,
		ResultCode:        c.ResultCode,
		ResultDescription: c.ResultDescription,
		Event: &model.PaymentEvent{
			FromStatus: from,
			Trigger:    c.Trigger,
			GatewayID:  c.GatewayID,
			ResultCode: c.ResultCode,
			Actor:      c.Actor,
			Metadata:   c.Metadata,
		},
	}
	if c.Latest {
		t.LatestGatewayID = c.GatewayID
	}

	updated, err := l.payments.Transition(ctx, t)
	if err != nil {
		return nil, err
	}

	l.metrics.StatusTransition(string(from), string(to))

	// Announced after commit. Subscribers must tolerate gaps.
	if err := l.publisher.Publish(ctx, event.NewStatusChanged(updated, from, c.Trigger, c.GatewayID, c.ResultCode)); err != nil {
		l.logger.Warn("Failed to publish payment status change",
			zap.String("payment_id", updated.ID.String()),
			zap.String("to", string(to)),
			zap.Error(err))
	}

	return updated, nil
}

// note appends an event that leaves the status unchanged.
func (l *statusLedger) note(ctx context.Context, p *model.Payment, kind string, c statusChange) {
	metadata := model.JSONB{"event": kind}
	for k, v := range c.Metadata {
		metadata[k] = v
	}

	err := l.payments.AppendEvent(ctx, &model.PaymentEvent{
		PaymentID:  p.ID,
		FromStatus: p.Status,
		ToStatus:   p.Status,
		Trigger:    c.Trigger,
		GatewayID:  c.GatewayID,
		ResultCode: c.ResultCode,
		Actor:      c.Actor,
		Metadata:   metadata,
	})
	if err != nil {
		l.logger.Warn("Failed to append payment event",
			zap.String("payment_id", p.ID.String()),
			zap.String("event", kind),
			zap.Error(err))
	}
}
