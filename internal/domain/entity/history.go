package entity

import (
	"github.com/google/uuid"
	"github.com/wekeepgrowing/settlement-service/internal/domain/model"
)

// HistoryFilter selects a user's payments.
type HistoryFilter struct {
	UserID uuid.UUID
	Status model.PaymentStatus
	PaginationParams
}

// PaymentHistory is a page of payments.
type PaymentHistory struct {
	Data       []*model.Payment `json:"data"`
	Pagination PaginationMeta   `json:"pagination"`
}
