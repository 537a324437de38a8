package unitofwork

import (
	"context"

	"sales-offers-billing/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SubscriptionRepository() contract.SubscriptionRepository
	PaymentRepository() contract.PaymentRepository
}
