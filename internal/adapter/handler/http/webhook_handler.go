package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/cache"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/settlement-service/internal/usecase"
	"go.uber.org/zap"
)

// The lease outlives the processing bound, which covers a status query, a
// capture and a payout with its receipt wait.
const (
	defaultWebhookProcessTimeout = 5 * time.Minute
	defaultWebhookLockTTL        = defaultWebhookProcessTimeout + time.Minute
)

// Webhook response statuses.
const (
	webhookStatusProcessed = "processed"
	webhookStatusIgnored   = "ignored"
	webhookStatusDuplicate = "duplicate"
	webhookStatusBusy      = "busy"
)

// NotificationHandler consumes verified gateway notifications.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, n usecase.Notification) (usecase.Outcome, error)
}

// WebhookHandler receives gateway notifications. Every verified delivery is
// answered with 200 so the gateway stops retrying; only a bad signature is 401.
type WebhookHandler struct {
	cfg          config.WebhookConfig
	orchestrator NotificationHandler
	webhooks     repository.WebhookRepository
	locker       cache.Locker
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewWebhookHandler(
	cfg config.WebhookConfig,
	orchestrator NotificationHandler,
	webhooks repository.WebhookRepository,
	locker cache.Locker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *WebhookHandler {
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "X-Signature"
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = defaultWebhookProcessTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultWebhookLockTTL
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	return &WebhookHandler{
		cfg:          cfg,
		orchestrator: orchestrator,
		webhooks:     webhooks,
		locker:       locker,
		metrics:      m,
		logger:       logger,
	}
}

// webhookResult is the result block of a notification.
type webhookResult struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// webhookPayload accepts both the bare form and the {type, payload} envelope.
type webhookPayload struct {
	ID      string        `json:"id"`
	Result  webhookResult `json:"result"`
	Type    string        `json:"type"`
	Payload *webhookInner `json:"payload"`
}

type webhookInner struct {
	ID     string        `json:"id"`
	Result webhookResult `json:"result"`
}

func (p *webhookPayload) notification() usecase.Notification {
	if p.ID == "" && p.Payload != nil {
		return usecase.Notification{
			GatewayID:   p.Payload.ID,
			ResultCode:  p.Payload.Result.Code,
			Description: p.Payload.Result.Description,
		}
	}
	return usecase.Notification{
		GatewayID:   p.ID,
		ResultCode:  p.Result.Code,
		Description: p.Result.Description,
	}
}

// Handle processes POST /webhook
func (h *WebhookHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		return h.respond(c, webhookStatusIgnored, "unreadable_body")
	}

	if !h.verify(body, c.Request().Header.Get(h.cfg.SignatureHeader)) {
		h.logger.Warn("Webhook signature verification failed",
			zap.String("remote_ip", c.RealIP()))
		h.metrics.WebhookNotification("invalid_signature")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Invalid webhook signature",
			"code":  "INVALID_SIGNATURE",
		})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("Failed to parse webhook payload", zap.Error(err))
		return h.respond(c, webhookStatusIgnored, "invalid_payload")
	}
	n := payload.notification()
	if n.GatewayID == "" {
		h.logger.Warn("Webhook payload has no payment id", zap.String("type", payload.Type))
		return h.respond(c, webhookStatusIgnored, "missing_id")
	}

	log := h.logger.With(
		zap.String("gateway_id", n.GatewayID),
		zap.String("result_code", n.ResultCode))
	log.Info("Processing gateway notification")

	record := h.save(ctx, body, n, log)
	if record != nil && record.Status == model.WebhookStatusCompleted {
		log.Info("Duplicate webhook delivery ignored", zap.Int64("webhook_id", record.ID))
		return h.respond(c, webhookStatusDuplicate, record.Outcome)
	}

	release, acquired, err := h.locker.TryLock(ctx, cache.PaymentLockKey(n.GatewayID), h.cfg.LockTTL)
	if err != nil {
		log.Warn("Webhook lock unavailable, processing without it", zap.Error(err))
	} else if !acquired {
		log.Info("Notification for this payment is already being processed")
		return h.respond(c, webhookStatusBusy, "")
	} else {
		defer release()
	}

	// The gateway may drop the delivery; capture and payout still run to completion.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.ProcessTimeout)
	defer cancel()

	if record != nil {
		if err := h.webhooks.MarkProcessing(ctx, record.ID); err != nil {
			log.Warn("Failed to mark webhook processing", zap.Error(err))
		}
	}

	outcome, err := h.orchestrator.HandleNotification(ctx, n)
	if record != nil {
		if err != nil {
			if markErr := h.webhooks.MarkFailed(ctx, record.ID, err); markErr != nil {
				log.Warn("Failed to mark webhook failed", zap.Error(markErr))
			}
		} else if markErr := h.webhooks.MarkCompleted(ctx, record.ID, string(outcome)); markErr != nil {
			log.Warn("Failed to mark webhook completed", zap.Error(markErr))
		}
	}
	if err != nil {
		log.Error("Failed to handle gateway notification", zap.Error(err))
	}

	return h.respond(c, webhookStatusProcessed, string(outcome))
}

// verify checks the hex HMAC-SHA256 of body. A "sha256=" prefix is accepted.
func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if h.cfg.Secret == "" {
		return h.cfg.AllowUnsigned
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.cfg.Secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// save stores the delivery keyed by body hash. A nil result means the store
// is unavailable and the notification is handled without deduplication.
func (h *WebhookHandler) save(ctx context.Context, body []byte, n usecase.Notification, log *zap.Logger) *model.WebhookNotification {
	if h.webhooks == nil {
		return nil
	}

	sum := sha256.Sum256(body)
	var data model.JSONB
	if err := json.Unmarshal(body, &data); err != nil {
		data = model.JSONB{}
	}

	record, err := h.webhooks.Save(ctx, &model.WebhookNotification{
		PayloadHash: hex.EncodeToString(sum[:]),
		GatewayID:   n.GatewayID,
		ResultCode:  n.ResultCode,
		Status:      model.WebhookStatusPending,
		Data:        data,
	})
	if err != nil {
		log.Warn("Failed to store webhook delivery", zap.Error(err))
		return nil
	}
	return record
}

func (h *WebhookHandler) respond(c echo.Context, status, outcome string) error {
	label := outcome
	if label == "" {
		label = status
	}
	h.metrics.WebhookNotification(label)

	body := echo.Map{"status": status}
	if outcome != "" {
		body["outcome"] = outcome
	}
	return c.JSON(http.StatusOK, body)
}
