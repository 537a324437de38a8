package contract

import (
	"context"
	"time"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/repository/specification"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Payment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Payment, error)

	// TransitionStatus performs a conditional status update on the payment with
	// the given reference. It returns true only for the caller whose update matched
	// the expected current status.
	TransitionStatus(ctx context.Context, reference string, from, to entity.PaymentStatus, reason string, at time.Time) (bool, error)
}
