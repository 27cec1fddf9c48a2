package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Card is the gateway-returned card descriptor. Raw PAN and CVV are never stored.
type Card struct {
	Bin         string `json:"bin,omitempty"`
	Last4Digits string `json:"last4Digits,omitempty"`
	Holder      string `json:"holder,omitempty"`
	ExpiryMonth string `json:"expiryMonth,omitempty"`
	ExpiryYear  string `json:"expiryYear,omitempty"`
	Brand       string `json:"brand,omitempty"`
}

// Payment is a card payment and the optional crypto payout settled against it.
type Payment struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	// ReferenceID is the pre-authorization id and never changes.
	ReferenceID string `gorm:"column:reference_id;size:64;not null;index" json:"reference_id"`
	// PaymentID is the gateway id of the latest operation.
	PaymentID string `gorm:"column:payment_id;size:64" json:"payment_id,omitempty"`
	// GatewayIDs holds every gateway id the payment was known by, pre-auth first.
	GatewayIDs            pq.StringArray `gorm:"column:gateway_ids;type:text[];not null" json:"gateway_ids"`
	MerchantTransactionID string         `gorm:"column:merchant_transaction_id;size:64;uniqueIndex" json:"merchant_transaction_id"`

	Amount       decimal.Decimal          `gorm:"type:decimal(20,8);not null" json:"amount"`
	Currency     string                   `gorm:"size:3;not null" json:"currency"`
	PaymentBrand string                   `gorm:"size:32" json:"payment_brand"`
	PaymentType  string                   `gorm:"size:8;not null;default:'PA'" json:"payment_type"`
	Card         datatypes.JSONType[Card] `gorm:"type:jsonb" json:"card"`
	Status       PaymentStatus            `gorm:"size:32;not null;default:'pending';index" json:"status"`

	CryptoAmount   decimal.NullDecimal `gorm:"type:decimal(30,18)" json:"crypto_amount,omitempty"`
	CryptoCurrency string              `gorm:"size:16" json:"crypto_currency,omitempty"`
	WalletAddress  string              `gorm:"size:64" json:"wallet_address,omitempty"`
	Network        string              `gorm:"size:32" json:"network,omitempty"`
	TransferStatus TransferStatus      `gorm:"size:16;not null;default:''" json:"transfer_status"`

	LastResultCode        string `gorm:"size:32" json:"last_result_code,omitempty"`
	LastResultDescription string `json:"last_result_description,omitempty"`

	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// HasGatewayID reports whether id is one of the gateway ids of the payment.
func (p *Payment) HasGatewayID(id string) bool {
	for _, known := range p.GatewayIDs {
		if known == id {
			return true
		}
	}
	return false
}

// PayoutConfigured reports whether the payment carries a complete payout destination.
func (p *Payment) PayoutConfigured() bool {
	return p.WalletAddress != "" && p.CryptoCurrency != "" && p.Network != ""
}

// PayoutAmount is the crypto amount, falling back to the card amount.
func (p *Payment) PayoutAmount() decimal.Decimal {
	if p.CryptoAmount.Valid {
		return p.CryptoAmount.Decimal
	}
	return p.Amount
}
