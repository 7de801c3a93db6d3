package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shoporia/backend/models"
)

func TestRateCacheEmpty(t *testing.T) {
	cache := NewRateCache(time.Hour)

	_, ok := cache.Get()
	assert.False(t, ok)
}

func TestRateCacheSetAndGet(t *testing.T) {
	cache := NewRateCache(time.Hour)
	cache.Set(map[string]models.Currency{
		"USD": {Code: "USD", Rate: 1.0},
		"NGN": {Code: "NGN", Rate: 750.0},
	})

	rates, ok := cache.Get()
	assert.True(t, ok)
	assert.Len(t, rates, 2)
	assert.Equal(t, 750.0, rates["NGN"].Rate)
}

func TestRateCacheExpires(t *testing.T) {
	cache := NewRateCache(10 * time.Millisecond)
	cache.Set(map[string]models.Currency{
		"USD": {Code: "USD", Rate: 1.0},
	})

	_, ok := cache.Get()
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get()
	assert.False(t, ok)
}

func TestRateCacheInvalidate(t *testing.T) {
	cache := NewRateCache(time.Hour)
	cache.Set(map[string]models.Currency{
		"USD": {Code: "USD", Rate: 1.0},
	})

	cache.Invalidate()

	_, ok := cache.Get()
	assert.False(t, ok)
}
