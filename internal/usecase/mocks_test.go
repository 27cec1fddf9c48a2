package usecase_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/wekeepgrowing/settlement-service/internal/domain/entity"
	"github.com/wekeepgrowing/settlement-service/internal/domain/event"
	"github.com/wekeepgrowing/settlement-service/internal/domain/gateway"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/blockchain"
)

// MockGatewayClient is a mock implementation of gateway.Client
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) PreAuthorize(ctx context.Context, req *gateway.PreAuthorizeRequest) (*gateway.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

func (m *MockGatewayClient) QueryStatus(ctx context.Context, gatewayID string) (*gateway.Result, error) {
	args := m.Called(ctx, gatewayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

func (m *MockGatewayClient) Capture(ctx context.Context, gatewayID string, amount decimal.Decimal, currency string) (*gateway.Result, error) {
	args := m.Called(ctx, gatewayID, amount.String(), currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

func (m *MockGatewayClient) Manage(ctx context.Context, gatewayID string, op gateway.Operation, amount decimal.Decimal, currency string) (*gateway.Result, error) {
	args := m.Called(ctx, gatewayID, op, amount.String(), currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

// MockChainTransferer is a mock implementation of usecase.ChainTransferer
type MockChainTransferer struct {
	mock.Mock
}

func (m *MockChainTransferer) Validate(req *blockchain.TransferRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockChainTransferer) Transfer(ctx context.Context, req *blockchain.TransferRequest) (*blockchain.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blockchain.TransferResult), args.Error(1)
}

func (m *MockChainTransferer) FromAddress() string {
	args := m.Called()
	return args.String(0)
}

// MockPublisher is a mock implementation of event.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evt *event.StatusChanged) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of repository.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *model.Payment, evt *model.PaymentEvent) error {
	args := m.Called(ctx, payment, evt)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByGatewayID(ctx context.Context, gatewayID string) (*model.Payment, error) {
	args := m.Called(ctx, gatewayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByUser(ctx context.Context, filter entity.HistoryFilter) ([]*model.Payment, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) ListStale(ctx context.Context, statuses []model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Payment, error) {
	args := m.Called(ctx, statuses, updatedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Payment), args.Error(1)
}

// Transition returns the payment built by a func(*repository.StatusTransition) *model.Payment when one is given.
func (m *MockPaymentRepository) Transition(ctx context.Context, t *repository.StatusTransition) (*model.Payment, error) {
	args := m.Called(ctx, t)
	if fn, ok := args.Get(0).(func(*repository.StatusTransition) *model.Payment); ok {
		return fn(t), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ClaimTransfer(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	args := m.Called(ctx, paymentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) AppendEvent(ctx context.Context, evt *model.PaymentEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListEvents(ctx context.Context, paymentID uuid.UUID) ([]*model.PaymentEvent, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PaymentEvent), args.Error(1)
}

// applied returns the payment a successful transition would produce.
func applied(p *model.Payment) func(*repository.StatusTransition) *model.Payment {
	return func(t *repository.StatusTransition) *model.Payment {
		next := *p
		next.Status = t.To
		next.Version = p.Version + 1
		if t.AppendGatewayID != "" && !next.HasGatewayID(t.AppendGatewayID) {
			next.GatewayIDs = append(append([]string{}, p.GatewayIDs...), t.AppendGatewayID)
		}
		if t.LatestGatewayID != "" {
			next.PaymentID = t.LatestGatewayID
		}
		return &next
	}
}

type staticIDs string

func (s staticIDs) NextID() string {
	return string(s)
}
