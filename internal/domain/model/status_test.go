package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{PaymentStatusPending, PaymentStatusAuthorized, true},
		{PaymentStatusAuthorized, PaymentStatusAuthorized, true},
		{PaymentStatusAuthorized, PaymentStatusSuccess, true},
		{PaymentStatusErrorCapture, PaymentStatusAuthorized, true},
		{PaymentStatusSuccess, PaymentStatusRefunded, true},
		{PaymentStatusSuccess, PaymentStatusChargeback, true},
		{PaymentStatusChargeback, PaymentStatusChargebackReversed, true},
		{PaymentStatusSuccess, PaymentStatusPending, false},
		{PaymentStatusSuccess, PaymentStatusAuthorized, false},
		{PaymentStatusRefunded, PaymentStatusSuccess, false},
		{PaymentStatusFailed, PaymentStatusAuthorized, false},
		{PaymentStatusFailedCapture, PaymentStatusAuthorized, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestPayment_Helpers(t *testing.T) {
	p := &Payment{
		GatewayIDs: []string{"pa-1", "cp-1"},
		Amount:     decimal.RequireFromString("10.50"),
	}
	assert.True(t, p.HasGatewayID("cp-1"))
	assert.False(t, p.HasGatewayID("rf-1"))
	assert.False(t, p.PayoutConfigured())
	assert.True(t, p.PayoutAmount().Equal(decimal.RequireFromString("10.5")))

	p.WalletAddress, p.CryptoCurrency, p.Network = "0xabc", "USDT", "BSC"
	p.CryptoAmount = decimal.NewNullDecimal(decimal.RequireFromString("9"))
	assert.True(t, p.PayoutConfigured())
	assert.True(t, p.PayoutAmount().Equal(decimal.NewFromInt(9)))
}
