package database

import (
	"github.com/wekeepgrowing/settlement-service/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/settlement-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Payment        domainRepo.PaymentRepository
	CryptoTransfer domainRepo.CryptoTransferRepository
	Webhook        domainRepo.WebhookRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Payment:        repository.NewPaymentRepository(db, logger),
		CryptoTransfer: repository.NewCryptoTransferRepository(db, logger),
		Webhook:        repository.NewWebhookRepository(db, logger),
	}
}
