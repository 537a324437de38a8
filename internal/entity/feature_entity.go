// FILE: internal/entity/feature_entity.go
// Quota feature keys and the typed feature map carried by plans
package entity

// FeatureKey names a quota-gated capability. The set is closed; unknown keys resolve to
// DefaultFeatureLimit during evaluation.
type FeatureKey string

const (
	FeatureMaxOffers        FeatureKey = "max_offers"
	FeatureMaxPosts         FeatureKey = "max_posts"
	FeatureMaxStores        FeatureKey = "max_stores"
	FeatureFeaturedListings FeatureKey = "featured_listings"
	FeatureAnalyticsExports FeatureKey = "analytics_exports"
)

const (
	// UnlimitedQuota marks a feature with no upper bound.
	UnlimitedQuota = -1
	// DefaultFeatureLimit applies to keys a plan does not mention.
	DefaultFeatureLimit = 1
)

var knownFeatureKeys = map[FeatureKey]struct{}{
	FeatureMaxOffers:        {},
	FeatureMaxPosts:         {},
	FeatureMaxStores:        {},
	FeatureFeaturedListings: {},
	FeatureAnalyticsExports: {},
}

func (k FeatureKey) IsKnown() bool {
	_, ok := knownFeatureKeys[k]
	return ok
}

func KnownFeatureKeys() []FeatureKey {
	return []FeatureKey{
		FeatureMaxOffers,
		FeatureMaxPosts,
		FeatureMaxStores,
		FeatureFeaturedListings,
		FeatureAnalyticsExports,
	}
}

// PlanFeatures maps a feature key to its integer limit (-1 = unlimited).
type PlanFeatures map[FeatureKey]int

// Limit returns the configured limit, or DefaultFeatureLimit when the key is absent.
func (f PlanFeatures) Limit(key FeatureKey) int {
	if f == nil {
		return DefaultFeatureLimit
	}
	if limit, ok := f[key]; ok {
		return limit
	}
	return DefaultFeatureLimit
}

func (f PlanFeatures) Clone() PlanFeatures {
	if f == nil {
		return nil
	}
	out := make(PlanFeatures, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// FreeTierFeatures are granted to accounts without an effectively-active subscription.
func FreeTierFeatures() PlanFeatures {
	return PlanFeatures{
		FeatureMaxOffers: 5,
		FeatureMaxPosts:  5,
		FeatureMaxStores: 1,
	}
}
