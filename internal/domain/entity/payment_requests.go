package entity

import (
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
)

// PreAuthorizeRequest is the body of POST /pre-authorize. Payout fields are optional.
type PreAuthorizeRequest struct {
	Amount       string            `json:"amount" validate:"required"`
	Currency     string            `json:"currency" validate:"required,len=3,alpha"`
	PaymentBrand string            `json:"paymentBrand" validate:"required"`
	Card         gateway.CardInput `json:"card" validate:"required"`

	WalletAddress  string `json:"walletAddress,omitempty"`
	CryptoCurrency string `json:"cryptoCurrency,omitempty"`
	Network        string `json:"network,omitempty"`
	CryptoAmount   string `json:"cryptoAmount,omitempty"`
}

// CaptureRequest is the body of POST /capture/:paymentId.
type CaptureRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// ManageRequest is the body of POST /manage/:paymentId.
type ManageRequest struct {
	Operation string `json:"operation"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}
