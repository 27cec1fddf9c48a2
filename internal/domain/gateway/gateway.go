// Package gateway defines the card payment gateway contract used by the settlement flows.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Payment types sent as paymentType.
const (
	PaymentTypePreAuthorization = "PA"
	PaymentTypeDebit            = "DB"
	PaymentTypeCapture          = "CP"
)

// Client issues one HTTP call per operation against the gateway. It never retries.
type Client interface {
	PreAuthorize(ctx context.Context, req *PreAuthorizeRequest) (*Result, error)
	QueryStatus(ctx context.Context, gatewayID string) (*Result, error)
	Capture(ctx context.Context, gatewayID string, amount decimal.Decimal, currency string) (*Result, error)
	Manage(ctx context.Context, gatewayID string, op Operation, amount decimal.Decimal, currency string) (*Result, error)
}

// CardInput is the raw card data forwarded to the gateway and never persisted.
type CardInput struct {
	Number      string `json:"number" validate:"required,numeric,min=12,max=19"`
	Holder      string `json:"holder" validate:"required"`
	ExpiryMonth string `json:"expiryMonth" validate:"required,len=2,numeric"`
	ExpiryYear  string `json:"expiryYear" validate:"required,len=4,numeric"`
	CVV         string `json:"cvv" validate:"required,min=3,max=4,numeric"`
}

type PreAuthorizeRequest struct {
	Amount                decimal.Decimal
	Currency              string
	Brand                 string
	Card                  CardInput
	MerchantTransactionID string
}

// ResultCode is the gateway result block.
type ResultCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CardInfo is the card descriptor echoed back by the gateway.
type CardInfo struct {
	Bin         string `json:"bin"`
	Last4Digits string `json:"last4Digits"`
	Holder      string `json:"holder"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
}

// Result is a decoded gateway response. Raw is the body exactly as received.
type Result struct {
	ID           string          `json:"id"`
	ReferencedID string          `json:"referencedId"`
	PaymentType  string          `json:"paymentType"`
	PaymentBrand string          `json:"paymentBrand"`
	Amount       string          `json:"amount"`
	Currency     string          `json:"currency"`
	Result       ResultCode      `json:"result"`
	Card         *CardInfo       `json:"card,omitempty"`
	HTTPStatus   int             `json:"-"`
	Raw          json.RawMessage `json:"-"`
}

// Succeeded applies the synchronous success matcher to the result code.
func (r *Result) Succeeded() bool {
	return r != nil && IsSuccess(r.Result.Code)
}

// Error codes for transport and decoding failures.
const (
	ErrCodeRequest  = "REQUEST_ERROR"
	ErrCodeAPI      = "API_ERROR"
	ErrCodeResponse = "RESPONSE_ERROR"
	ErrCodeParse    = "PARSE_ERROR"
)

// Error is a failure to obtain a decodable gateway response.
type Error struct {
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}
