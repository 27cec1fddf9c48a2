// Package oppwa implements the gateway client against the OPPWA REST API.
package oppwa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const paymentsPath = "/v1/payments"

// Client talks to the gateway with one request per operation and no retries.
type Client struct {
	baseURL  string
	entityID string
	token    string
	client   *http.Client
	logger   *zap.Logger
}

// NewClient creates a gateway client from configuration
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:  cfg.BaseURL(),
		entityID: cfg.EntityID,
		token:    cfg.BearerToken(),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

var _ gateway.Client = (*Client)(nil)

// PreAuthorize reserves funds on a card
// POST /v1/payments
func (c *Client) PreAuthorize(ctx context.Context, req *gateway.PreAuthorizeRequest) (*gateway.Result, error) {
	form := c.form()
	form.Set("amount", formatAmount(req.Amount))
	form.Set("currency", strings.ToUpper(req.Currency))
	form.Set("paymentBrand", req.Brand)
	// Always a pre-authorization, whatever the caller asked for
	form.Set("paymentType", gateway.PaymentTypePreAuthorization)
	form.Set("card.number", req.Card.Number)
	form.Set("card.holder", req.Card.Holder)
	form.Set("card.expiryMonth", req.Card.ExpiryMonth)
	form.Set("card.expiryYear", req.Card.ExpiryYear)
	form.Set("card.cvv", req.Card.CVV)
	if req.MerchantTransactionID != "" {
		form.Set("merchantTransactionId", req.MerchantTransactionID)
	}

	c.logger.Info("Gateway: requesting pre-authorization",
		zap.String("amount", form.Get("amount")),
		zap.String("currency", form.Get("currency")),
		zap.String("brand", req.Brand),
		zap.String("merchant_transaction_id", req.MerchantTransactionID))

	return c.do(ctx, http.MethodPost, paymentsPath, form)
}

// QueryStatus reads the current state of a gateway payment
// GET /v1/payments/{id}
func (c *Client) QueryStatus(ctx context.Context, gatewayID string) (*gateway.Result, error) {
	path := fmt.Sprintf("%s/%s?%s", paymentsPath, url.PathEscape(gatewayID), c.form().Encode())
	return c.do(ctx, http.MethodGet, path, nil)
}

// Capture captures a pre-authorization
// POST /v1/payments/{id}
func (c *Client) Capture(ctx context.Context, gatewayID string, amount decimal.Decimal, currency string) (*gateway.Result, error) {
	c.logger.Info("Gateway: capturing pre-authorization",
		zap.String("gateway_id", gatewayID),
		zap.String("amount", formatAmount(amount)),
		zap.String("currency", currency))

	return c.followUp(ctx, gatewayID, gateway.PaymentTypeCapture, amount, currency)
}

// Manage runs a back-office operation on a captured payment
// POST /v1/payments/{id}
func (c *Client) Manage(ctx context.Context, gatewayID string, op gateway.Operation, amount decimal.Decimal, currency string) (*gateway.Result, error) {
	c.logger.Info("Gateway: managing payment",
		zap.String("gateway_id", gatewayID),
		zap.String("operation", op.Name()),
		zap.String("amount", formatAmount(amount)))

	return c.followUp(ctx, gatewayID, string(op), amount, currency)
}

func (c *Client) followUp(ctx context.Context, gatewayID, paymentType string, amount decimal.Decimal, currency string) (*gateway.Result, error) {
	form := c.form()
	form.Set("amount", formatAmount(amount))
	form.Set("currency", strings.ToUpper(currency))
	form.Set("paymentType", paymentType)

	path := fmt.Sprintf("%s/%s", paymentsPath, url.PathEscape(gatewayID))
	return c.do(ctx, http.MethodPost, path, form)
}

func (c *Client) form() url.Values {
	form := url.Values{}
	form.Set("entityId", c.entityID)
	return form
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (*gateway.Result, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &gateway.Error{
			Code:    gateway.ErrCodeRequest,
			Message: "Failed to create gateway request",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	httpReq.Header.Set("Authorization", c.token)
	if form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Error("Gateway: request failed",
			zap.String("method", method),
			zap.String("path", stripQuery(path)),
			zap.Error(err))
		return nil, &gateway.Error{
			Code:    gateway.ErrCodeAPI,
			Message: "Payment gateway request failed",
			Details: map[string]interface{}{"error": err.Error()},
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gateway.Error{
			Code:    gateway.ErrCodeResponse,
			Message: "Failed to read gateway response",
			Details: map[string]interface{}{"error": err.Error(), "status": resp.StatusCode},
		}
	}

	// Non-2xx bodies still carry a result code that decides the outcome
	var result gateway.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.logger.Error("Gateway: undecodable response",
			zap.Int("status_code", resp.StatusCode),
			zap.String("path", stripQuery(path)),
			zap.Error(err))
		return nil, &gateway.Error{
			Code:    gateway.ErrCodeParse,
			Message: "Failed to parse gateway response",
			Details: map[string]interface{}{"error": err.Error(), "status": resp.StatusCode, "body": string(respBody)},
		}
	}
	result.HTTPStatus = resp.StatusCode
	result.Raw = json.RawMessage(respBody)

	c.logger.Info("Gateway: response received",
		zap.String("method", method),
		zap.String("path", stripQuery(path)),
		zap.Int("status_code", resp.StatusCode),
		zap.String("id", result.ID),
		zap.String("result_code", result.Result.Code))

	return &result, nil
}

// formatAmount renders an amount with two decimals as the gateway expects
func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
