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

	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/blockchain"
	"github.com/wekeepgrowing/settlement-service/internal/usecase"
)

const (
	preAuthID = "8ac7a4a1pa"
	captureID = "8ac7a4a1cp"
)

func authorizedPayment(status model.PaymentStatus) *model.Payment {
	return &model.Payment{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		ReferenceID:    preAuthID,
		PaymentID:      preAuthID,
		GatewayIDs:     []string{preAuthID},
		Amount:         decimal.RequireFromString("50.00"),
		Currency:       "EUR",
		Status:         status,
		CryptoCurrency: testTokenCode,
		WalletAddress:  testWallet,
		Network:        testNetwork,
		Version:        1,
	}
}

func captureResult(code string) *gateway.Result {
	return &gateway.Result{
		ID:           captureID,
		ReferencedID: preAuthID,
		PaymentType:  gateway.PaymentTypeCapture,
		Amount:       "50.00",
		Currency:     "EUR",
		Result:       gateway.ResultCode{Code: code, Description: "result"},
		HTTPStatus:   200,
	}
}

type orchestratorFixture struct {
	ledger  *memoryLedger
	gateway *MockGatewayClient
	chain   *MockChainTransferer
	orch    *usecase.CaptureOrchestrator
}

func newOrchestratorFixture(payments ...*model.Payment) *orchestratorFixture {
	ledger := newMemoryLedger(payments...)
	gw := new(MockGatewayClient)
	chain := new(MockChainTransferer)
	chain.On("Validate", mock.Anything).Return(nil).Maybe()
	chain.On("FromAddress").Return(testAdmin).Maybe()

	logger := zap.NewNop()
	engine := usecase.NewPayoutEngine(chain, ledger, ledger, nil, logger)
	return &orchestratorFixture{
		ledger:  ledger,
		gateway: gw,
		chain:   chain,
		orch:    usecase.NewCaptureOrchestrator(ledger, gw, engine, nil, nil, logger),
	}
}

func TestCaptureOrchestrator_HandleNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown gateway id", func(t *testing.T) {
		f := newOrchestratorFixture()

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: "unknown", ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeNotFound, outcome)
		f.gateway.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("settled payment is acknowledged only", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusSuccess)
		p.TransferStatus = model.TransferStatusSuccess
		f := newOrchestratorFixture(p)

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeAlreadyProcessed, outcome)
	})

	t.Run("non-success notification appends event without transition", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusPending)
		f := newOrchestratorFixture(p)

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "800.100.100", Description: "declined"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeNotSuccessful, outcome)
		assert.Equal(t, model.PaymentStatusPending, f.ledger.payment(p.ID).Status)
		assert.Len(t, f.ledger.eventsOf(model.EventWebhookRejected), 1)
	})

	t.Run("pending payment is captured and paid out", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusPending)
		f := newOrchestratorFixture(p)
		f.gateway.On("Capture", mock.Anything, preAuthID, "50", "EUR").Return(captureResult("000.000.000"), nil).Once()
		f.chain.On("Transfer", mock.Anything, mock.MatchedBy(func(req *blockchain.TransferRequest) bool {
			// no crypto amount, falls back to the card amount
			return req.Amount.Equal(decimal.RequireFromString("50")) && req.Currency == testTokenCode
		})).Return(&blockchain.TransferResult{TxHash: testTxHash}, nil).Once()

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeCaptured, outcome)

		stored := f.ledger.payment(p.ID)
		assert.Equal(t, model.PaymentStatusSuccess, stored.Status)
		assert.Equal(t, captureID, stored.PaymentID)
		assert.Equal(t, []string{preAuthID, captureID}, []string(stored.GatewayIDs))
		assert.Equal(t, model.TransferStatusSuccess, stored.TransferStatus)
		f.gateway.AssertExpectations(t)
		f.chain.AssertExpectations(t)
	})

	t.Run("redelivery by capture id after settlement", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusPending)
		f := newOrchestratorFixture(p)
		f.gateway.On("Capture", mock.Anything, preAuthID, "50", "EUR").Return(captureResult("000.000.000"), nil).Once()
		f.chain.On("Transfer", mock.Anything, mock.Anything).Return(&blockchain.TransferResult{TxHash: testTxHash}, nil).Once()

		_, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})
		require.NoError(t, err)

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: captureID, ResultCode: "000.000.000"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeAlreadyProcessed, outcome)
		f.gateway.AssertNumberOfCalls(t, "Capture", 1)
	})

	t.Run("capture rejected by gateway", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusAuthorized)
		f := newOrchestratorFixture(p)
		f.gateway.On("Capture", mock.Anything, preAuthID, "50", "EUR").Return(captureResult(gateway.CodeCaptureRejected), nil).Once()

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeCaptureFailed, outcome)
		stored := f.ledger.payment(p.ID)
		assert.Equal(t, model.PaymentStatusFailedCapture, stored.Status)
		assert.True(t, stored.HasGatewayID(captureID))
		assert.Equal(t, preAuthID, stored.PaymentID)
		f.chain.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	t.Run("capture transport error", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusErrorCapture)
		f := newOrchestratorFixture(p)
		f.gateway.On("Capture", mock.Anything, preAuthID, "50", "EUR").
			Return(nil, &gateway.Error{Code: gateway.ErrCodeRequest, Message: "timeout"}).Once()

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeCaptureError, outcome)
		assert.Equal(t, model.PaymentStatusErrorCapture, f.ledger.payment(p.ID).Status)
	})

	t.Run("captured payment resumes payout", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusSuccess)
		p.TransferStatus = model.TransferStatusFailed
		f := newOrchestratorFixture(p)
		f.chain.On("Transfer", mock.Anything, mock.Anything).Return(&blockchain.TransferResult{TxHash: testTxHash}, nil).Once()

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomePayoutResumed, outcome)
		assert.Equal(t, model.TransferStatusSuccess, f.ledger.payment(p.ID).TransferStatus)
		f.gateway.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("capture without payout destination skips payout", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusPending)
		p.WalletAddress = ""
		f := newOrchestratorFixture(p)
		f.gateway.On("Capture", mock.Anything, preAuthID, "50", "EUR").Return(captureResult("000.000.000"), nil).Once()

		outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeCaptured, outcome)
		assert.Len(t, f.ledger.eventsOf(model.EventPayoutSkipped), 1)
		f.chain.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	notCapturable := []model.PaymentStatus{
		model.PaymentStatusFailed,
		model.PaymentStatusFailedCapture,
		model.PaymentStatusRefunded,
		model.PaymentStatusChargeback,
	}
	for _, status := range notCapturable {
		t.Run("not capturable from "+string(status), func(t *testing.T) {
			p := authorizedPayment(status)
			f := newOrchestratorFixture(p)

			outcome, err := f.orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

			require.NoError(t, err)
			assert.Equal(t, usecase.OutcomeNotCapturable, outcome)
			assert.Equal(t, status, f.ledger.payment(p.ID).Status)
		})
	}

	t.Run("lookup failure is returned", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		repo.On("FindByGatewayID", mock.Anything, preAuthID).Return(nil, errors.New("connection refused"))
		ledger := newMemoryLedger()
		engine := usecase.NewPayoutEngine(new(MockChainTransferer), repo, ledger, nil, zap.NewNop())
		orch := usecase.NewCaptureOrchestrator(repo, new(MockGatewayClient), engine, nil, nil, zap.NewNop())

		outcome, err := orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		assert.Error(t, err)
		assert.Equal(t, usecase.OutcomeError, outcome)
	})

	t.Run("lost claim is a conflict", func(t *testing.T) {
		p := authorizedPayment(model.PaymentStatusPending)
		repo := new(MockPaymentRepository)
		repo.On("FindByGatewayID", mock.Anything, preAuthID).Return(p, nil)
		repo.On("Transition", mock.Anything, mock.Anything).Return(nil, domainErrors.ErrStatusConflict)
		gw := new(MockGatewayClient)
		engine := usecase.NewPayoutEngine(new(MockChainTransferer), repo, newMemoryLedger(), nil, zap.NewNop())
		orch := usecase.NewCaptureOrchestrator(repo, gw, engine, nil, nil, zap.NewNop())

		outcome, err := orch.HandleNotification(ctx, usecase.Notification{GatewayID: preAuthID, ResultCode: "000.100.110"})

		require.NoError(t, err)
		assert.Equal(t, usecase.OutcomeConflict, outcome)
		gw.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
