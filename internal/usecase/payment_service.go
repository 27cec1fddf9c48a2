package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/settlement-service/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/event"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/cache"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// captureLeaseTTL covers a status query and a capture call at the gateway timeout.
const captureLeaseTTL = 3 * time.Minute

// PaymentService serves the synchronous card payment API.
type PaymentService struct {
	payments  repository.PaymentRepository
	transfers repository.CryptoTransferRepository
	gateway   gateway.Client
	payouts   *PayoutEngine
	ids       IDGenerator
	ledger    *statusLedger
	locker    cache.Locker
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewPaymentService(
	payments repository.PaymentRepository,
	transfers repository.CryptoTransferRepository,
	gatewayClient gateway.Client,
	payouts *PayoutEngine,
	ids IDGenerator,
	publisher event.Publisher,
	locker cache.Locker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PaymentService {
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	return &PaymentService{
		payments:  payments,
		transfers: transfers,
		gateway:   gatewayClient,
		payouts:   payouts,
		ids:       ids,
		ledger:    newStatusLedger(payments, publisher, m, logger),
		locker:    locker,
		metrics:   m,
		logger:    logger,
	}
}

// PreAuthorize reserves funds on a card and records the payment. A gateway
// rejection is recorded as failed and returned as a result, not an error.
func (s *PaymentService) PreAuthorize(ctx context.Context, userID uuid.UUID, req *entity.PreAuthorizeRequest) (*gateway.Result, *model.Payment, error) {
	amount, err := parseCardAmount(req.Amount)
	if err != nil {
		return nil, nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, nil, domainErrors.NewValidationError("Currency is required", nil)
	}

	cryptoAmount := decimal.NullDecimal{}
	if req.CryptoAmount != "" {
		v, err := parsePositiveAmount(req.CryptoAmount)
		if err != nil {
			return nil, nil, domainErrors.NewValidationError("Invalid crypto amount", map[string]interface{}{"cryptoAmount": req.CryptoAmount})
		}
		cryptoAmount = decimal.NewNullDecimal(v)
	}
	if req.WalletAddress != "" && !common.IsHexAddress(req.WalletAddress) {
		return nil, nil, domainErrors.NewValidationError("Invalid wallet address", map[string]interface{}{"walletAddress": req.WalletAddress})
	}

	merchantTxID := s.ids.NextID()
	log := s.logger.With(
		zap.String("user_id", userID.String()),
		zap.String("merchant_transaction_id", merchantTxID))

	res, err := s.gateway.PreAuthorize(ctx, &gateway.PreAuthorizeRequest{
		Amount:                amount,
		Currency:              currency,
		Brand:                 req.PaymentBrand,
		Card:                  req.Card,
		MerchantTransactionID: merchantTxID,
	})
	if err != nil {
		s.metrics.GatewayOperation("preauthorize", "error")
		log.Error("Pre-authorization call failed", zap.Error(err))
		return nil, nil, err
	}

	status := model.PaymentStatusPending
	outcome := "success"
	if !res.Succeeded() {
		status = model.PaymentStatusFailed
		outcome = "rejected"
	}
	s.metrics.GatewayOperation("preauthorize", outcome)

	if res.ID == "" {
		log.Warn("Pre-authorization returned no id, nothing recorded",
			zap.String("result_code", res.Result.Code))
		return res, nil, nil
	}

	payment := &model.Payment{
		ID:                    uuid.New(),
		UserID:                userID,
		ReferenceID:           res.ID,
		PaymentID:             res.ID,
		MerchantTransactionID: merchantTxID,
		Amount:                amount,
		Currency:              currency,
		PaymentBrand:          req.PaymentBrand,
		PaymentType:           gateway.PaymentTypePreAuthorization,
		Card:                  datatypes.NewJSONType(cardFromResult(res, req.PaymentBrand)),
		Status:                status,
		CryptoAmount:          cryptoAmount,
		CryptoCurrency:        strings.ToUpper(strings.TrimSpace(req.CryptoCurrency)),
		WalletAddress:         strings.TrimSpace(req.WalletAddress),
		Network:               strings.ToUpper(strings.TrimSpace(req.Network)),
		LastResultCode:        res.Result.Code,
		LastResultDescription: res.Result.Description,
	}

	err = s.payments.Create(ctx, payment, &model.PaymentEvent{
		ToStatus:   status,
		Trigger:    model.TriggerPreAuthorize,
		GatewayID:  res.ID,
		ResultCode: res.Result.Code,
		Actor:      userID.String(),
	})
	if err != nil {
		// The authorization exists at the gateway either way.
		log.Error("Failed to record pre-authorization",
			zap.String("gateway_id", res.ID),
			zap.Error(err))
		return res, nil, nil
	}

	log.Info("Payment pre-authorized",
		zap.String("payment_id", payment.ID.String()),
		zap.String("gateway_id", res.ID),
		zap.String("status", string(status)))

	return res, payment, nil
}

// Capture settles a pre-authorization. Every local check runs before any gateway call.
func (s *PaymentService) Capture(ctx context.Context, userID uuid.UUID, gatewayID string, req *entity.CaptureRequest) (*gateway.Result, error) {
	amount, currency, err := parseAmountAndCurrency(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("user_id", userID.String()),
		zap.String("gateway_id", gatewayID))

	release, acquired, err := s.locker.TryLock(ctx, cache.PaymentLockKey(gatewayID), captureLeaseTTL)
	if err != nil {
		log.Warn("Payment lease unavailable, relying on the ledger claim", zap.Error(err))
	} else if !acquired {
		log.Info("Payment is already being processed")
		return nil, domainErrors.ErrStatusConflict
	} else {
		defer release()
	}

	payment, err := s.payments.FindByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		if payment.UserID != userID {
			return nil, domainErrors.ErrPaymentNotFound
		}
		if err := checkCapturable(payment, amount, currency); err != nil {
			return nil, err
		}
	} else {
		log.Warn("Capturing a payment that is not in the ledger")
	}

	status, err := s.gateway.QueryStatus(ctx, gatewayID)
	if err != nil {
		log.Warn("Payment status query failed, continuing with capture", zap.Error(err))
	} else if err := checkAuthorization(status, amount); err != nil {
		return nil, err
	}

	if payment != nil {
		// A capture that read the same version loses here, before the gateway sees it.
		claimed, err := s.ledger.transition(ctx, payment, captureClaimTarget(payment.Status), statusChange{
			Trigger: model.TriggerCapture,
			Actor:   userID.String(),
		})
		if err != nil {
			if errors.Is(err, domainErrors.ErrStatusConflict) {
				log.Info("Capture claimed by a concurrent request")
			}
			return nil, err
		}
		payment = claimed
	}

	res, err := s.gateway.Capture(ctx, gatewayID, amount, currency)
	if err != nil {
		s.metrics.GatewayOperation("capture", "error")
		log.Error("Capture call failed", zap.Error(err))
		s.record(ctx, payment, model.PaymentStatusErrorCapture, statusChange{
			Trigger:  model.TriggerCapture,
			Actor:    userID.String(),
			Metadata: model.JSONB{"error": err.Error()},
		}, log)
		return nil, err
	}

	change := statusChange{
		Trigger:           model.TriggerCapture,
		Actor:             userID.String(),
		GatewayID:         res.ID,
		ResultCode:        res.Result.Code,
		ResultDescription: res.Result.Description,
	}

	if !res.Succeeded() {
		s.metrics.GatewayOperation("capture", "rejected")
		log.Warn("Capture rejected by gateway",
			zap.String("result_code", res.Result.Code),
			zap.String("description", res.Result.Description))
		s.record(ctx, payment, model.PaymentStatusFailedCapture, change, log)
		return nil, &domainErrors.GatewayRejectedError{
			Code:        res.Result.Code,
			Description: res.Result.Description,
			Message:     gateway.DescribeCode(res.Result.Code, res.Result.Description),
			HTTPStatus:  res.HTTPStatus,
			Raw:         res.Raw,
		}
	}

	s.metrics.GatewayOperation("capture", "success")
	change.Latest = true
	s.record(ctx, payment, model.PaymentStatusSuccess, change, log)
	log.Info("Payment captured", zap.String("capture_id", res.ID))

	return res, nil
}

// record applies a capture result when the payment is in the ledger.
func (s *PaymentService) record(ctx context.Context, p *model.Payment, to model.PaymentStatus, c statusChange, log *zap.Logger) {
	if p == nil {
		return
	}
	if _, err := s.ledger.transition(ctx, p, to, c); err != nil {
		log.Error("Failed to record capture result",
			zap.String("payment_id", p.ID.String()),
			zap.String("to", string(to)),
			zap.Error(err))
	}
}

// History lists the caller's payments, newest first.
func (s *PaymentService) History(ctx context.Context, filter entity.HistoryFilter) (*entity.PaymentHistory, error) {
	filter.Validate()

	payments, total, err := s.payments.ListByUser(ctx, filter)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*model.Payment{}
	}

	return &entity.PaymentHistory{
		Data:       payments,
		Pagination: entity.NewPaginationMeta(filter.PaginationParams, total, len(payments)),
	}, nil
}

// Get returns a payment owned by userID. Other users' payments are not found.
func (s *PaymentService) Get(ctx context.Context, userID, paymentID uuid.UUID) (*model.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.UserID != userID {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return payment, nil
}

// Events returns the audit log of a payment owned by userID.
func (s *PaymentService) Events(ctx context.Context, userID, paymentID uuid.UUID) ([]*model.PaymentEvent, error) {
	if _, err := s.Get(ctx, userID, paymentID); err != nil {
		return nil, err
	}
	return s.payments.ListEvents(ctx, paymentID)
}

// Transfers returns the payout attempts of a payment owned by userID.
func (s *PaymentService) Transfers(ctx context.Context, userID, paymentID uuid.UUID) ([]*model.CryptoTransfer, error) {
	if _, err := s.Get(ctx, userID, paymentID); err != nil {
		return nil, err
	}
	return s.transfers.ListByPayment(ctx, paymentID)
}

// RetryPayout reruns the payout of a captured payment. It is idempotent.
func (s *PaymentService) RetryPayout(ctx context.Context, userID, paymentID uuid.UUID) (*PayoutResult, error) {
	payment, err := s.Get(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusSuccess {
		return nil, domainErrors.NewValidationError("Payment is not captured", map[string]interface{}{"status": payment.Status})
	}
	if !payment.PayoutConfigured() {
		return nil, domainErrors.NewValidationError("Payment has no payout destination", nil)
	}

	return s.payouts.Transfer(ctx, PayoutRequest{
		UserID:        payment.UserID,
		PaymentID:     payment.ID,
		Amount:        payment.PayoutAmount(),
		Currency:      payment.CryptoCurrency,
		WalletAddress: payment.WalletAddress,
		Network:       payment.Network,
	}), nil
}

// captureClaimTarget is authorized where the state machine allows it. A
// failed_capture retry claims with a self transition.
func captureClaimTarget(status model.PaymentStatus) model.PaymentStatus {
	if status.CanTransition(model.PaymentStatusAuthorized) {
		return model.PaymentStatusAuthorized
	}
	return status
}

func checkCapturable(p *model.Payment, amount decimal.Decimal, currency string) error {
	switch p.Status {
	case model.PaymentStatusPending, model.PaymentStatusAuthorized, model.PaymentStatusErrorCapture, model.PaymentStatusFailedCapture:
	case model.PaymentStatusFailed:
		return domainErrors.NewValidationError("Pre-authorization is not valid", map[string]interface{}{"status": p.Status})
	default:
		return domainErrors.NewValidationError("Payment already captured", map[string]interface{}{"status": p.Status})
	}
	if amount.GreaterThan(p.Amount) {
		return domainErrors.NewValidationError("Capture amount exceeds pre-authorized amount", map[string]interface{}{
			"captureAmount":       amount.String(),
			"preAuthorizedAmount": p.Amount.String(),
		})
	}
	if !strings.EqualFold(currency, p.Currency) {
		return domainErrors.NewValidationError("Currency does not match pre-authorization", map[string]interface{}{
			"captureCurrency":       currency,
			"preAuthorizedCurrency": p.Currency,
		})
	}
	return nil
}

func checkAuthorization(status *gateway.Result, amount decimal.Decimal) error {
	if !gateway.IsSuccess(status.Result.Code) {
		return domainErrors.NewValidationError("Pre-authorization is not valid", map[string]interface{}{
			"code":        status.Result.Code,
			"description": status.Result.Description,
		})
	}
	if status.PaymentType != gateway.PaymentTypePreAuthorization && status.PaymentType != gateway.PaymentTypeDebit {
		return domainErrors.NewValidationError("Payment is not a pre-authorization", map[string]interface{}{
			"paymentType": status.PaymentType,
		})
	}
	if status.Amount == "" {
		return nil
	}
	authorized, err := decimal.NewFromString(status.Amount)
	if err != nil {
		return nil
	}
	if authorized.LessThan(amount) {
		return domainErrors.NewValidationError("Capture amount exceeds pre-authorized amount", map[string]interface{}{
			"captureAmount":       amount.String(),
			"preAuthorizedAmount": authorized.String(),
		})
	}
	return nil
}

func parsePositiveAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || amount.Sign() <= 0 {
		return decimal.Zero, domainErrors.NewValidationError("Amount must be a positive number", map[string]interface{}{"amount": raw})
	}
	return amount, nil
}

// cardAmountPlaces is the precision the gateway accepts for card amounts.
const cardAmountPlaces = 2

// parseCardAmount rejects amounts the gateway would have to round.
func parseCardAmount(raw string) (decimal.Decimal, error) {
	amount, err := parsePositiveAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.Equal(amount.Truncate(cardAmountPlaces)) {
		return decimal.Zero, domainErrors.NewValidationError("Amount must have at most 2 decimal places", map[string]interface{}{"amount": raw})
	}
	return amount, nil
}

func parseAmountAndCurrency(rawAmount, rawCurrency string) (decimal.Decimal, string, error) {
	if strings.TrimSpace(rawAmount) == "" || strings.TrimSpace(rawCurrency) == "" {
		return decimal.Zero, "", domainErrors.NewValidationError("Amount and currency are required", nil)
	}
	amount, err := parseCardAmount(rawAmount)
	if err != nil {
		return decimal.Zero, "", err
	}
	return amount, strings.ToUpper(strings.TrimSpace(rawCurrency)), nil
}

func cardFromResult(res *gateway.Result, brand string) model.Card {
	card := model.Card{Brand: brand}
	if res.PaymentBrand != "" {
		card.Brand = res.PaymentBrand
	}
	if res.Card != nil {
		card.Bin = res.Card.Bin
		card.Last4Digits = res.Card.Last4Digits
		card.Holder = res.Card.Holder
		card.ExpiryMonth = res.Card.ExpiryMonth
		card.ExpiryYear = res.Card.ExpiryYear
	}
	return card
}
