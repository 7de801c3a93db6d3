package services

import (
	"sync"
	"time"

	"github.com/shoporia/backend/models"
)

// RateCache holds a snapshot of the exchange-rate table with a TTL. It is
// injected into the currency service so multi-instance deployments and
// tests control staleness explicitly instead of sharing module state.
type RateCache struct {
	mu       sync.RWMutex
	rates    map[string]models.Currency
	loadedAt time.Time
	ttl      time.Duration
}

func NewRateCache(ttl time.Duration) *RateCache {
	return &RateCache{ttl: ttl}
}

// Get returns the cached snapshot if it is still fresh.
func (rc *RateCache) Get() (map[string]models.Currency, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	if rc.rates == nil || time.Since(rc.loadedAt) > rc.ttl {
		return nil, false
	}
	return rc.rates, true
}

// Set replaces the snapshot and resets the TTL clock.
func (rc *RateCache) Set(rates map[string]models.Currency) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.rates = rates
	rc.loadedAt = time.Now()
}

// Invalidate drops the snapshot. Called whenever a rate record changes so
// the next read reloads from the database.
func (rc *RateCache) Invalidate() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.rates = nil
}
