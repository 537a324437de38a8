package memory

import (
	"time"

	"sales-offers-billing/internal/entity"

	"github.com/patrickmn/go-cache"
)

const activePlansKey = "plans:active"

// PlanCache holds read-mostly plan rows. Subscription state is never cached here.
type PlanCache struct {
	cache *cache.Cache
}

func NewPlanCache(ttl time.Duration) *PlanCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PlanCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *PlanCache) GetActive() ([]*entity.SubscriptionPlan, bool) {
	if x, found := c.cache.Get(activePlansKey); found {
		return x.([]*entity.SubscriptionPlan), true
	}
	return nil, false
}

func (c *PlanCache) SetActive(plans []*entity.SubscriptionPlan) {
	c.cache.Set(activePlansKey, plans, cache.DefaultExpiration)
}

func (c *PlanCache) Get(key string) (*entity.SubscriptionPlan, bool) {
	if x, found := c.cache.Get("plan:" + key); found {
		return x.(*entity.SubscriptionPlan), true
	}
	return nil, false
}

func (c *PlanCache) Set(key string, plan *entity.SubscriptionPlan) {
	c.cache.Set("plan:"+key, plan, cache.DefaultExpiration)
}

func (c *PlanCache) Flush() {
	c.cache.Flush()
}
