// Package event describes payment status changes announced to other services.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
)

// StatusChanged is published after a payment transition commits.
type StatusChanged struct {
	PaymentID  uuid.UUID           `json:"payment_id"`
	UserID     uuid.UUID           `json:"user_id"`
	From       model.PaymentStatus `json:"from"`
	To         model.PaymentStatus `json:"to"`
	Trigger    model.EventTrigger  `json:"trigger"`
	GatewayID  string              `json:"gateway_id,omitempty"`
	ResultCode string              `json:"result_code,omitempty"`
	Version    int64               `json:"version"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Publisher delivers status changes. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, evt *StatusChanged) error
	Close() error
}

// NewStatusChanged builds the announcement for an applied transition.
func NewStatusChanged(p *model.Payment, from model.PaymentStatus, trigger model.EventTrigger, gatewayID, resultCode string) *StatusChanged {
	return &StatusChanged{
		PaymentID:  p.ID,
		UserID:     p.UserID,
		From:       from,
		To:         p.Status,
		Trigger:    trigger,
		GatewayID:  gatewayID,
		ResultCode: resultCode,
		Version:    p.Version,
		OccurredAt: time.Now().UTC(),
	}
}

type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that drops every event.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *StatusChanged) error { return nil }

func (noopPublisher) Close() error { return nil }
