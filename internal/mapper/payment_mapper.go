package mapper

import (
	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/model"
)

type PaymentMapper struct{}

func NewPaymentMapper() *PaymentMapper {
	return &PaymentMapper{}
}

func (m *PaymentMapper) ToEntity(p *model.Payment) *entity.Payment {
	if p == nil {
		return nil
	}
	return &entity.Payment{
		Id:              p.Id,
		AccountId:       p.AccountId,
		SubscriptionId:  p.SubscriptionId,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Method:          entity.PaymentMethod(p.Method),
		Reference:       p.Reference,
		Purpose:         entity.PaymentPurpose(p.Purpose),
		Status:          entity.PaymentStatus(p.Status),
		FailureReason:   p.FailureReason,
		GatewayProvider: p.GatewayProvider,
		CompletedAt:     p.CompletedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (m *PaymentMapper) ToModel(p *entity.Payment) *model.Payment {
	if p == nil {
		return nil
	}
	return &model.Payment{
		Id:              p.Id,
		AccountId:       p.AccountId,
		SubscriptionId:  p.SubscriptionId,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Method:          string(p.Method),
		Reference:       p.Reference,
		Purpose:         string(p.Purpose),
		Status:          string(p.Status),
		FailureReason:   p.FailureReason,
		GatewayProvider: p.GatewayProvider,
		CompletedAt:     p.CompletedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
