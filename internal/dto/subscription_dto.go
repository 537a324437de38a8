// FILE: internal/dto/subscription_dto.go
package dto

import (
	"time"

	"sales-offers-billing/internal/entity"

	"github.com/google/uuid"
)

type PlanResponse struct {
	Id              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	Slug            string              `json:"slug"`
	Description     string              `json:"description"`
	Price           string              `json:"price"`
	Currency        string              `json:"currency"`
	DurationDays    int                 `json:"duration_days"`
	Features        entity.PlanFeatures `json:"features"`
	MarketingPoints []string            `json:"marketing_points"`
	IsFree          bool                `json:"is_free"`
}

func NewPlanResponse(p *entity.SubscriptionPlan) *PlanResponse {
	points := p.MarketingPoints
	if points == nil {
		points = []string{}
	}
	return &PlanResponse{
		Id:              p.Id,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		Price:           p.Price.StringFixed(2),
		Currency:        p.Currency,
		DurationDays:    p.DurationDays,
		Features:        p.Features,
		MarketingPoints: points,
		IsFree:          p.IsFree(),
	}
}

type CreateSubscriptionRequest struct {
	BillingMode string `json:"billing_mode" validate:"omitempty,oneof=manual auto"`
}

// CreateSubscriptionResponse omits the payment fields for zero-price plans.
type CreateSubscriptionResponse struct {
	SubscriptionId   uuid.UUID `json:"subscription_id"`
	PaymentURL       string    `json:"payment_url,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	AccessCode       string    `json:"access_code,omitempty"`
	Status           string    `json:"status"`
}

type SubscriptionSummaryResponse struct {
	SubscriptionId uuid.UUID           `json:"subscription_id"`
	PlanId         uuid.UUID           `json:"plan_id"`
	PlanName       string              `json:"plan_name"`
	Price          string              `json:"price"`
	Currency       string              `json:"currency"`
	Status         string              `json:"status"`
	BillingMode    string              `json:"billing_mode"`
	AutoRenew      bool                `json:"auto_renew"`
	StoredCard     string              `json:"stored_card,omitempty"`
	StartTime      *time.Time          `json:"start_time"`
	EndTime        *time.Time          `json:"end_time"`
	DaysRemaining  int                 `json:"days_remaining"`
	Features       entity.PlanFeatures `json:"features"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
