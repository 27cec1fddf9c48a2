package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wekeepgrowing/settlement-service/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/settlement-service/internal/domain/errors"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
	"github.com/wekeepgrowing/settlement-service/internal/domain/repository"
)

// memoryLedger is an in-memory PaymentRepository and CryptoTransferRepository
// with the same compare-and-swap rules as the postgres implementation.
type memoryLedger struct {
	mu        sync.Mutex
	payments  map[uuid.UUID]*model.Payment
	events    []*model.PaymentEvent
	transfers []*model.CryptoTransfer
}

var (
	_ repository.PaymentRepository        = (*memoryLedger)(nil)
	_ repository.CryptoTransferRepository = (*memoryLedger)(nil)
)

func newMemoryLedger(payments ...*model.Payment) *memoryLedger {
	l := &memoryLedger{payments: make(map[uuid.UUID]*model.Payment)}
	for _, p := range payments {
		l.payments[p.ID] = clonePayment(p)
	}
	return l
}

func clonePayment(p *model.Payment) *model.Payment {
	c := *p
	c.GatewayIDs = append(pq.StringArray(nil), p.GatewayIDs...)
	return &c
}

func (l *memoryLedger) payment(id uuid.UUID) *model.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return clonePayment(l.payments[id])
}

func (l *memoryLedger) eventsOf(kind string) []*model.PaymentEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.PaymentEvent
	for _, e := range l.events {
		if e.Metadata["event"] == kind {
			out = append(out, e)
		}
	}
	return out
}

func (l *memoryLedger) Create(_ context.Context, p *model.Payment, evt *model.PaymentEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if !p.HasGatewayID(p.ReferenceID) {
		p.GatewayIDs = append(pq.StringArray{p.ReferenceID}, p.GatewayIDs...)
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	l.payments[p.ID] = clonePayment(p)
	if evt != nil {
		evt.PaymentID = p.ID
		l.events = append(l.events, evt)
	}
	return nil
}

func (l *memoryLedger) GetByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (l *memoryLedger) FindByGatewayID(_ context.Context, gatewayID string) (*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.payments {
		if p.HasGatewayID(gatewayID) {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (l *memoryLedger) ListByUser(_ context.Context, filter entity.HistoryFilter) ([]*model.Payment, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var all []*model.Payment
	for _, p := range l.payments {
		if p.UserID == filter.UserID && (filter.Status == "" || p.Status == filter.Status) {
			all = append(all, clonePayment(p))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []*model.Payment{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], total, nil
}

func (l *memoryLedger) ListStale(_ context.Context, statuses []model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.Payment
	for _, p := range l.payments {
		for _, s := range statuses {
			if p.Status == s && p.UpdatedAt.Before(updatedBefore) {
				out = append(out, clonePayment(p))
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *memoryLedger) Transition(_ context.Context, t *repository.StatusTransition) (*model.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, from := range t.From {
		if !from.CanTransition(t.To) {
			return nil, &domainErrors.InvalidTransitionError{From: string(from), To: string(t.To)}
		}
	}

	p, ok := l.payments[t.PaymentID]
	if !ok || p.Version != t.ExpectedVersion || !statusIn(p.Status, t.From) {
		return nil, domainErrors.ErrStatusConflict
	}

	p.Status = t.To
	p.Version++
	p.UpdatedAt = time.Now()
	if t.AppendGatewayID != "" && !p.HasGatewayID(t.AppendGatewayID) {
		p.GatewayIDs = append(p.GatewayIDs, t.AppendGatewayID)
	}
	if t.LatestGatewayID != "" {
		p.PaymentID = t.LatestGatewayID
	}
	if t.ResultCode != "" {
		p.LastResultCode = t.ResultCode
		p.LastResultDescription = t.ResultDescription
	}
	if t.Event != nil {
		t.Event.PaymentID = p.ID
		t.Event.ToStatus = t.To
		l.events = append(l.events, t.Event)
	}
	return clonePayment(p), nil
}

func (l *memoryLedger) ClaimTransfer(_ context.Context, paymentID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[paymentID]
	if !ok {
		return false, nil
	}
	if p.TransferStatus != model.TransferStatusNone && p.TransferStatus != model.TransferStatusFailed {
		return false, nil
	}
	p.TransferStatus = model.TransferStatusPending
	return true, nil
}

func (l *memoryLedger) AppendEvent(_ context.Context, evt *model.PaymentEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	return nil
}

func (l *memoryLedger) ListEvents(_ context.Context, paymentID uuid.UUID) ([]*model.PaymentEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.PaymentEvent
	for _, e := range l.events {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memoryLedger) FindSuccessful(_ context.Context, paymentID uuid.UUID) (*model.CryptoTransfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.transfers {
		if t.PaymentID == paymentID && t.Status == model.CryptoTransferSuccess {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (l *memoryLedger) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]*model.CryptoTransfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*model.CryptoTransfer
	for _, t := range l.transfers {
		if t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *memoryLedger) Record(_ context.Context, transfer *model.CryptoTransfer, evt *model.PaymentEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers = append(l.transfers, transfer)
	if p, ok := l.payments[transfer.PaymentID]; ok {
		p.TransferStatus = model.TransferStatusFailed
		if transfer.Status == model.CryptoTransferSuccess {
			p.TransferStatus = model.TransferStatusSuccess
		}
	}
	if evt != nil {
		evt.PaymentID = transfer.PaymentID
		l.events = append(l.events, evt)
	}
	return nil
}

func statusIn(s model.PaymentStatus, set []model.PaymentStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
