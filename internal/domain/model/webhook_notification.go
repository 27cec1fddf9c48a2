package model

import (
	"database/sql/driver"
	"time"
)

// WebhookStatus represents the processing status of a webhook
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// WebhookNotification is a gateway notification as received, keyed by the hash of its body.
type WebhookNotification struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	PayloadHash string        `gorm:"size:64;uniqueIndex;not null" json:"payload_hash"`
	GatewayID   string        `gorm:"size:64;index" json:"gateway_id"`
	ResultCode  string        `gorm:"size:32" json:"result_code"`
	Status      WebhookStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	Outcome     string        `gorm:"size:32" json:"outcome,omitempty"`
	Attempts    int           `gorm:"not null;default:0" json:"attempts"`
	LastError   *string       `json:"last_error,omitempty"`
	Data        JSONB         `gorm:"type:jsonb" json:"data"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WebhookNotification) TableName() string {
	return "webhook_notifications"
}
