package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/blockchain"
	"github.com/wekeepgrowing/settlement-service/internal/usecase"
)

const (
	testWallet    = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	testAdmin     = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	testTxHash    = "0x4e3a3754410177e6937ef1f84bba68ea139e8d1a2258c5f85db9f1cd715a1bdd"
	testNetwork   = "BSC"
	testTokenCode = "USDT"
)

func capturedPayment() *model.Payment {
	return &model.Payment{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		ReferenceID:    "8ac7a4a1pa",
		PaymentID:      "8ac7a4a1cp",
		GatewayIDs:     []string{"8ac7a4a1pa", "8ac7a4a1cp"},
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "EUR",
		Status:         model.PaymentStatusSuccess,
		CryptoAmount:   decimal.NewNullDecimal(decimal.RequireFromString("98.5")),
		CryptoCurrency: testTokenCode,
		WalletAddress:  testWallet,
		Network:        testNetwork,
		Version:        3,
	}
}

// claimErrorLedger fails the transfer claim like a dropped database connection.
type claimErrorLedger struct {
	*memoryLedger
}

func (claimErrorLedger) ClaimTransfer(context.Context, uuid.UUID) (bool, error) {
	return false, errors.New("connection reset by peer")
}

func payoutRequest(p *model.Payment) usecase.PayoutRequest {
	return usecase.PayoutRequest{
		UserID:        p.UserID,
		PaymentID:     p.ID,
		Amount:        p.PayoutAmount(),
		Currency:      p.CryptoCurrency,
		WalletAddress: p.WalletAddress,
		Network:       p.Network,
	}
}

func TestPayoutEngine_Transfer(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("successful payout records transfer and event", func(t *testing.T) {
		p := capturedPayment()
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(nil)
		chain.On("FromAddress").Return(testAdmin)
		chain.On("Transfer", mock.Anything, mock.MatchedBy(func(req *blockchain.TransferRequest) bool {
			return req.Amount.Equal(decimal.RequireFromString("98.5")) && req.To == testWallet && req.Network == testNetwork
		})).Return(&blockchain.TransferResult{TxHash: testTxHash, Nonce: 7}, nil).Once()

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.True(t, result.Success)
		assert.Equal(t, testTxHash, result.TxHash)
		assert.False(t, result.AlreadyTransferred)

		transfers, err := ledger.ListByPayment(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, transfers, 1)
		assert.Equal(t, model.CryptoTransferSuccess, transfers[0].Status)
		assert.True(t, transfers[0].IsProcessed)
		assert.Equal(t, testAdmin, transfers[0].FromWalletAddress)
		require.NotNil(t, transfers[0].TxHash)
		assert.Equal(t, testTxHash, *transfers[0].TxHash)

		assert.Equal(t, model.TransferStatusSuccess, ledger.payment(p.ID).TransferStatus)
		assert.Len(t, ledger.eventsOf(model.EventPayoutSucceeded), 1)
		chain.AssertExpectations(t)
	})

	t.Run("second call returns original hash without a new transaction", func(t *testing.T) {
		p := capturedPayment()
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(nil)
		chain.On("FromAddress").Return(testAdmin)
		chain.On("Transfer", mock.Anything, mock.Anything).
			Return(&blockchain.TransferResult{TxHash: testTxHash}, nil).Once()

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		first := engine.Transfer(ctx, payoutRequest(p))
		second := engine.Transfer(ctx, payoutRequest(p))

		require.True(t, first.Success)
		assert.True(t, second.Success)
		assert.True(t, second.AlreadyTransferred)
		assert.Equal(t, first.TxHash, second.TxHash)

		transfers, _ := ledger.ListByPayment(ctx, p.ID)
		assert.Len(t, transfers, 1)
		chain.AssertNumberOfCalls(t, "Transfer", 1)
	})

	t.Run("invalid request records a failed transfer without a claim", func(t *testing.T) {
		p := capturedPayment()
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(errors.New("unsupported network: DOGE"))
		chain.On("FromAddress").Return(testAdmin)

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.False(t, result.Success)
		assert.Equal(t, "unsupported network: DOGE", result.Error)
		assert.Equal(t, model.TransferStatusFailed, ledger.payment(p.ID).TransferStatus)

		transfers, _ := ledger.ListByPayment(ctx, p.ID)
		require.Len(t, transfers, 1)
		assert.Equal(t, model.CryptoTransferFailed, transfers[0].Status)
		require.NotNil(t, transfers[0].ErrorMessage)
		assert.Equal(t, "unsupported network: DOGE", *transfers[0].ErrorMessage)

		failed := ledger.eventsOf(model.EventPayoutFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, "unsupported network: DOGE", failed[0].Metadata["error"])
		chain.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	t.Run("claim read error records a failed transfer", func(t *testing.T) {
		p := capturedPayment()
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(nil)
		chain.On("FromAddress").Return(testAdmin)

		engine := usecase.NewPayoutEngine(chain, claimErrorLedger{ledger}, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.False(t, result.Success)
		assert.Equal(t, "connection reset by peer", result.Error)
		assert.Equal(t, model.TransferStatusFailed, ledger.payment(p.ID).TransferStatus)
		assert.Len(t, ledger.eventsOf(model.EventPayoutFailed), 1)
		chain.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	t.Run("already transferred payment is reported even when the request no longer validates", func(t *testing.T) {
		p := capturedPayment()
		ledger := newMemoryLedger(p)
		hash := testTxHash
		require.NoError(t, ledger.Record(ctx, &model.CryptoTransfer{
			ID:        uuid.New(),
			PaymentID: p.ID,
			Status:    model.CryptoTransferSuccess,
			TxHash:    &hash,
		}, nil))
		chain := new(MockChainTransferer)
		chain.On("FromAddress").Return(testAdmin)

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.True(t, result.AlreadyTransferred)
		assert.Equal(t, testTxHash, result.TxHash)
		assert.Equal(t, model.TransferStatusSuccess, ledger.payment(p.ID).TransferStatus)
		chain.AssertNotCalled(t, "Validate", mock.Anything)
	})

	t.Run("payout held by another attempt is not sent", func(t *testing.T) {
		p := capturedPayment()
		p.TransferStatus = model.TransferStatusPending
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(nil)
		chain.On("FromAddress").Return(testAdmin)

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.False(t, result.Success)
		assert.Equal(t, "payout already in progress", result.Error)
		chain.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	t.Run("chain failure records failed transfer", func(t *testing.T) {
		p := capturedPayment()
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(nil)
		chain.On("FromAddress").Return("")
		chain.On("Transfer", mock.Anything, mock.Anything).
			Return(nil, errors.New("insufficient funds for gas")).Once()

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "insufficient funds")

		transfers, _ := ledger.ListByPayment(ctx, p.ID)
		require.Len(t, transfers, 1)
		assert.Equal(t, model.CryptoTransferFailed, transfers[0].Status)
		assert.False(t, transfers[0].IsProcessed)
		assert.Equal(t, model.DefaultFromWallet, transfers[0].FromWalletAddress)
		require.NotNil(t, transfers[0].ErrorMessage)
		assert.Equal(t, model.TransferStatusFailed, ledger.payment(p.ID).TransferStatus)
		assert.Len(t, ledger.eventsOf(model.EventPayoutFailed), 1)
	})

	t.Run("failed payout can be retried", func(t *testing.T) {
		p := capturedPayment()
		p.TransferStatus = model.TransferStatusFailed
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(nil)
		chain.On("FromAddress").Return(testAdmin)
		chain.On("Transfer", mock.Anything, mock.Anything).
			Return(&blockchain.TransferResult{TxHash: testTxHash}, nil).Once()

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.True(t, result.Success)
		assert.Equal(t, model.TransferStatusSuccess, ledger.payment(p.ID).TransferStatus)
	})

	t.Run("reverted transaction keeps its hash on the failed row", func(t *testing.T) {
		p := capturedPayment()
		ledger := newMemoryLedger(p)
		chain := new(MockChainTransferer)
		chain.On("Validate", mock.Anything).Return(nil)
		chain.On("FromAddress").Return(testAdmin)
		chain.On("Transfer", mock.Anything, mock.Anything).
			Return(&blockchain.TransferResult{TxHash: testTxHash}, blockchain.ErrTransactionReverted).Once()

		engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
		result := engine.Transfer(ctx, payoutRequest(p))

		assert.False(t, result.Success)
		transfers, _ := ledger.ListByPayment(ctx, p.ID)
		require.Len(t, transfers, 1)
		require.NotNil(t, transfers[0].TxHash)
		assert.Equal(t, testTxHash, *transfers[0].TxHash)
		assert.Equal(t, model.CryptoTransferFailed, transfers[0].Status)
	})
}
