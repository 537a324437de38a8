package mapper

import (
	"encoding/json"

	"sales-offers-billing/internal/entity"
	"sales-offers-billing/internal/model"

	"gorm.io/datatypes"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) PlanToEntity(p *model.SubscriptionPlan) *entity.SubscriptionPlan {
	if p == nil {
		return nil
	}
	return &entity.SubscriptionPlan{
		Id:              p.Id,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		Price:           p.Price,
		Currency:        p.Currency,
		DurationDays:    p.DurationDays,
		Features:        decodeFeatures(p.Features),
		MarketingPoints: []string(p.MarketingPoints),
		HostedPageURL:   p.HostedPageURL,
		Version:         p.Version,
		IsActive:        p.IsActive,
		SortOrder:       p.SortOrder,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (m *SubscriptionMapper) PlanToModel(p *entity.SubscriptionPlan) *model.SubscriptionPlan {
	if p == nil {
		return nil
	}
	return &model.SubscriptionPlan{
		Id:              p.Id,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		Price:           p.Price,
		Currency:        p.Currency,
		DurationDays:    p.DurationDays,
		Features:        encodeJSON(p.Features),
		MarketingPoints: datatypes.JSONSlice[string](p.MarketingPoints),
		HostedPageURL:   p.HostedPageURL,
		Version:         p.Version,
		IsActive:        p.IsActive,
		SortOrder:       p.SortOrder,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (m *SubscriptionMapper) SubscriptionToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	var snapshot entity.PlanSnapshot
	if len(s.PlanSnapshot) > 0 {
		_ = json.Unmarshal(s.PlanSnapshot, &snapshot)
	}
	return &entity.Subscription{
		Id:                 s.Id,
		AccountId:          s.AccountId,
		AccountEmail:       s.AccountEmail,
		PlanId:             s.PlanId,
		PlanSnapshot:       snapshot,
		Status:             entity.SubscriptionStatus(s.Status),
		BillingMode:        entity.BillingMode(s.BillingMode),
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		PaymentReference:   s.PaymentReference,
		AuthorizationToken: s.AuthorizationToken,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) SubscriptionToModel(s *entity.Subscription) *model.Subscription {
	if s == nil {
		return nil
	}
	return &model.Subscription{
		Id:                 s.Id,
		AccountId:          s.AccountId,
		AccountEmail:       s.AccountEmail,
		PlanId:             s.PlanId,
		PlanSnapshot:       encodeJSON(s.PlanSnapshot),
		Status:             string(s.Status),
		BillingMode:        string(s.BillingMode),
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		PaymentReference:   s.PaymentReference,
		AuthorizationToken: s.AuthorizationToken,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func decodeFeatures(raw datatypes.JSON) entity.PlanFeatures {
	if len(raw) == 0 {
		return entity.PlanFeatures{}
	}
	features := entity.PlanFeatures{}
	if err := json.Unmarshal(raw, &features); err != nil {
		return entity.PlanFeatures{}
	}
	return features
}

func encodeJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
