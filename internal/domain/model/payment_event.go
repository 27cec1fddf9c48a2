package model

import (
	"time"

	"github.com/google/uuid"
)

// EventTrigger names what caused a payment event.
type EventTrigger string

const (
	TriggerPreAuthorize   EventTrigger = "preauthorize"
	TriggerWebhook        EventTrigger = "webhook"
	TriggerCapture        EventTrigger = "capture"
	TriggerManage         EventTrigger = "manage"
	TriggerPayout         EventTrigger = "payout"
	TriggerReconciliation EventTrigger = "reconciliation"
)

// Event kinds stored in metadata["event"] for rows that do not change status.
const (
	EventWebhookRejected = "webhook_rejected"
	EventPayoutSucceeded = "payout_succeeded"
	EventPayoutFailed    = "payout_failed"
	EventPayoutSkipped   = "payout_skipped"
	EventReconciliation  = "reconciliation"
)

// Actors for events not caused by a user.
const (
	ActorGateway = "gateway"
	ActorSystem  = "system"
)

// PaymentEvent is one row of the append-only payment audit log.
type PaymentEvent struct {
	ID         int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"payment_id"`
	FromStatus PaymentStatus `gorm:"size:32" json:"from_status"`
	ToStatus   PaymentStatus `gorm:"size:32" json:"to_status"`
	Trigger    EventTrigger  `gorm:"size:32;not null" json:"trigger"`
	GatewayID  string        `gorm:"size:64" json:"gateway_id,omitempty"`
	ResultCode string        `gorm:"size:32" json:"result_code,omitempty"`
	Actor      string        `gorm:"size:64" json:"actor"`
	Metadata   JSONB         `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time     `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (PaymentEvent) TableName() string {
	return "payment_events"
}
