package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CryptoTransferStatus is the state of one payout attempt.
type CryptoTransferStatus string

const (
	CryptoTransferPending CryptoTransferStatus = "pending"
	CryptoTransferSuccess CryptoTransferStatus = "success"
	CryptoTransferFailed  CryptoTransferStatus = "failed"
)

// DefaultFromWallet is recorded when no admin address is configured.
const DefaultFromWallet = "admin"

// CryptoTransfer records one payout attempt from the admin wallet.
type CryptoTransfer struct {
	ID                uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID            `gorm:"type:uuid;not null;index" json:"user_id"`
	PaymentID         uuid.UUID            `gorm:"type:uuid;not null;index" json:"payment_id"`
	CryptoAmount      decimal.Decimal      `gorm:"type:decimal(30,18);not null" json:"crypto_amount"`
	CryptoCurrency    string               `gorm:"size:16;not null" json:"crypto_currency"`
	WalletAddress     string               `gorm:"size:64;not null" json:"wallet_address"`
	FromWalletAddress string               `gorm:"size:64" json:"from_wallet_address"`
	Network           string               `gorm:"size:32;not null" json:"network"`
	TxHash            *string              `gorm:"size:80" json:"tx_hash,omitempty"`
	Status            CryptoTransferStatus `gorm:"size:16;not null;index" json:"status"`
	IsProcessed       bool                 `gorm:"not null;default:false" json:"is_processed"`
	ErrorMessage      *string              `json:"error_message,omitempty"`
	CreatedAt         time.Time            `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time            `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CryptoTransfer) TableName() string {
	return "crypto_transfers"
}
