package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/blockchain"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Payout outcomes reported to metrics.
const (
	payoutOutcomeSuccess    = "success"
	payoutOutcomeFailed     = "failed"
	payoutOutcomeDuplicate  = "already_transferred"
	payoutOutcomeInProgress = "in_progress"
)

const payoutInProgressMessage = "payout already in progress"

// PayoutRequest pays a captured card payment out to a wallet.
type PayoutRequest struct {
	UserID        uuid.UUID
	PaymentID     uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	WalletAddress string
	Network       string
}

// PayoutResult is the outcome of a payout. Error is set when Success is false.
type PayoutResult struct {
	Success            bool   `json:"success"`
	TxHash             string `json:"txHash,omitempty"`
	AlreadyTransferred bool   `json:"alreadyTransferred,omitempty"`
	Error              string `json:"error,omitempty"`
}

// PayoutEngine sends at most one successful payout per payment.
type PayoutEngine struct {
	chain     ChainTransferer
	payments  repository.PaymentRepository
	transfers repository.CryptoTransferRepository
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewPayoutEngine(
	chain ChainTransferer,
	payments repository.PaymentRepository,
	transfers repository.CryptoTransferRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PayoutEngine {
	return &PayoutEngine{
		chain:     chain,
		payments:  payments,
		transfers: transfers,
		metrics:   m,
		logger:    logger,
	}
}

// Transfer never returns an error; failures are recorded and reported in the result.
func (e *PayoutEngine) Transfer(ctx context.Context, req PayoutRequest) *PayoutResult {
	ctx, span := otel.Tracer("usecase").Start(ctx, "payout.transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", req.PaymentID.String()),
		attribute.String("payout.network", req.Network),
		attribute.String("payout.currency", req.Currency),
	)

	started := time.Now()
	result := e.transfer(ctx, req)

	outcome := payoutOutcomeSuccess
	switch {
	case result.AlreadyTransferred:
		outcome = payoutOutcomeDuplicate
	case !result.Success && result.Error == payoutInProgressMessage:
		outcome = payoutOutcomeInProgress
	case !result.Success:
		outcome = payoutOutcomeFailed
		span.SetStatus(codes.Error, result.Error)
	}
	e.metrics.Payout(req.Network, req.Currency, outcome, time.Since(started))

	return result
}

func (e *PayoutEngine) transfer(ctx context.Context, req PayoutRequest) *PayoutResult {
	log := e.logger.With(
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("network", req.Network),
		zap.String("currency", req.Currency))

	transfer := &model.CryptoTransfer{
		ID:                uuid.New(),
		UserID:            req.UserID,
		PaymentID:         req.PaymentID,
		CryptoAmount:      req.Amount,
		CryptoCurrency:    req.Currency,
		WalletAddress:     req.WalletAddress,
		FromWalletAddress: e.fromWallet(),
		Network:           req.Network,
	}
	chainReq := &blockchain.TransferRequest{
		Network:  req.Network,
		Currency: req.Currency,
		To:       req.WalletAddress,
		Amount:   req.Amount,
	}

	if existing := e.findSuccessful(ctx, req.PaymentID, log); existing != nil {
		return existing
	}

	if err := e.chain.Validate(chainReq); err != nil {
		log.Warn("Rejected payout request", zap.Error(err))
		return e.fail(ctx, req, transfer, err, log)
	}

	claimed, err := e.payments.ClaimTransfer(ctx, req.PaymentID)
	if err != nil {
		log.Error("Failed to claim payout", zap.Error(err))
		return e.fail(ctx, req, transfer, err, log)
	}
	if !claimed {
		// The holder may have finished between the lookup and the claim.
		if existing := e.findSuccessful(ctx, req.PaymentID, log); existing != nil {
			return existing
		}
		log.Info("Payout claimed by another attempt")
		return &PayoutResult{Error: payoutInProgressMessage}
	}

	sent, err := e.chain.Transfer(ctx, chainReq)
	if err != nil {
		if sent != nil && sent.TxHash != "" {
			transfer.TxHash = &sent.TxHash
		}
		log.Error("Payout failed", zap.Error(err))
		return e.fail(ctx, req, transfer, err, log)
	}

	transfer.Status = model.CryptoTransferSuccess
	transfer.TxHash = &sent.TxHash
	transfer.IsProcessed = true
	metadata := e.eventMetadata(req, model.EventPayoutSucceeded)
	metadata["tx_hash"] = sent.TxHash
	metadata["nonce"] = sent.Nonce

	log.Info("Payout sent", zap.String("tx_hash", sent.TxHash), zap.Uint64("nonce", sent.Nonce))
	if err := e.transfers.Record(ctx, transfer, e.payoutEvent(metadata)); err != nil {
		// The transfer is on chain; only the ledger write is lost.
		log.Error("Failed to record successful payout",
			zap.String("tx_hash", sent.TxHash),
			zap.Error(err))
	}

	return &PayoutResult{Success: true, TxHash: sent.TxHash}
}

// fail records transfer as failed so the payment reads transfer_status failed.
func (e *PayoutEngine) fail(ctx context.Context, req PayoutRequest, transfer *model.CryptoTransfer, cause error, log *zap.Logger) *PayoutResult {
	message := cause.Error()
	transfer.Status = model.CryptoTransferFailed
	transfer.ErrorMessage = &message
	metadata := e.eventMetadata(req, model.EventPayoutFailed)
	metadata["error"] = message
	if transfer.TxHash != nil {
		metadata["tx_hash"] = *transfer.TxHash
	}

	if err := e.transfers.Record(ctx, transfer, e.payoutEvent(metadata)); err != nil {
		log.Error("Failed to record failed payout", zap.Error(err))
	}
	return &PayoutResult{Error: message}
}

func (e *PayoutEngine) findSuccessful(ctx context.Context, paymentID uuid.UUID, log *zap.Logger) *PayoutResult {
	existing, err := e.transfers.FindSuccessful(ctx, paymentID)
	if err != nil {
		log.Warn("Failed to look up previous payouts", zap.Error(err))
		return nil
	}
	if existing == nil {
		return nil
	}

	txHash := ""
	if existing.TxHash != nil {
		txHash = *existing.TxHash
	}
	log.Info("Payout already transferred", zap.String("tx_hash", txHash))
	return &PayoutResult{Success: true, TxHash: txHash, AlreadyTransferred: true}
}

func (e *PayoutEngine) fromWallet() string {
	if from := e.chain.FromAddress(); from != "" {
		return from
	}
	return model.DefaultFromWallet
}

func (e *PayoutEngine) eventMetadata(req PayoutRequest, kind string) model.JSONB {
	return model.JSONB{
		"event":          kind,
		"network":        req.Network,
		"currency":       req.Currency,
		"amount":         req.Amount.String(),
		"wallet_address": req.WalletAddress,
	}
}

// Payouts only run against captured payments.
func (e *PayoutEngine) payoutEvent(metadata model.JSONB) *model.PaymentEvent {
	return &model.PaymentEvent{
		FromStatus: model.PaymentStatusSuccess,
		ToStatus:   model.PaymentStatusSuccess,
		Trigger:    model.TriggerPayout,
		Actor:      model.ActorSystem,
		Metadata:   metadata,
	}
}
