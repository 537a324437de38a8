package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByReference struct {
	Reference string
}

func (s ByReference) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("reference = ?", s.Reference)
}

type ByAccount struct {
	AccountID uuid.UUID
}

func (s ByAccount) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("account_id = ?", s.AccountID)
}

type BySubscription struct {
	SubscriptionID uuid.UUID
}

func (s BySubscription) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("subscription_id = ?", s.SubscriptionID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

type BySlug struct {
	Slug string
}

func (s BySlug) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("slug = ?", s.Slug)
}

type ActivePlans struct{}

func (s ActivePlans) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

// EffectivelyActive matches subscriptions that grant access at Now.
type EffectivelyActive struct {
	Now time.Time
}

func (s EffectivelyActive) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND end_time > ?", "active", s.Now)
}

// DueForRenewal matches auto-billed active subscriptions ending in (Now, Until]
// that hold a stored authorization token.
type DueForRenewal struct {
	Now   time.Time
	Until time.Time
}

func (s DueForRenewal) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("billing_mode = ? AND status = ?", "auto", "active").
		Where("end_time > ? AND end_time <= ?", s.Now, s.Until).
		Where("authorization_token IS NOT NULL AND authorization_token <> ''")
}

// ExcludingID skips one row, used when looking at an account's other subscriptions.
type ExcludingID struct {
	ID uuid.UUID
}

func (s ExcludingID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id <> ?", s.ID)
}
