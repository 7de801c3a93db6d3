package services

import (
	"math"
	"strings"

	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/utils"
	"gorm.io/gorm"
)

// Rates outside this range are treated as corrupt data and skipped.
const (
	minValidRate = 1e-6
	maxValidRate = 999999
)

// CurrencyService converts amounts between the base currency and payment
// currencies using a cached exchange-rate table. Conversion always pivots
// through the base currency.
type CurrencyService struct {
	db           *gorm.DB
	cache        *RateCache
	baseCurrency string
}

func NewCurrencyService(db *gorm.DB, cache *RateCache, baseCurrency string) *CurrencyService {
	return &CurrencyService{
		db:           db,
		cache:        cache,
		baseCurrency: strings.ToUpper(baseCurrency),
	}
}

// Convert converts amount from one currency to another, rounded to two
// decimals (half-up). Same-currency conversion returns the amount
// unchanged without touching the cache.
func (s *CurrencyService) Convert(amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	rate, err := s.PairRate(from, to)
	if err != nil {
		return 0, err
	}
	return RoundAmount(amount * rate), nil
}

// PairRate returns the multiplier that converts from -> to via the base
// currency.
func (s *CurrencyService) PairRate(from, to string) (float64, error) {
	rates := s.rates()

	fromCur, ok := rates[strings.ToUpper(from)]
	if !ok {
		return 0, &CurrencyNotFoundError{Code: from}
	}
	toCur, ok := rates[strings.ToUpper(to)]
	if !ok {
		return 0, &CurrencyNotFoundError{Code: to}
	}

	return toCur.Rate / fromCur.Rate, nil
}

// Invalidate drops the cached rate table. Call after any rate record
// change.
func (s *CurrencyService) Invalidate() {
	s.cache.Invalidate()
}

// rates returns the current rate table. Reads never fail: if the database
// is unavailable the base currency alone is returned, uncached, so the
// next read retries.
func (s *CurrencyService) rates() map[string]models.Currency {
	if cached, ok := s.cache.Get(); ok {
		return cached
	}

	loaded, err := s.loadRates()
	if err != nil {
		utils.ErrorLogger.Printf("Failed to load currency rates, falling back to base currency only: %v", err)
		return s.baseOnly()
	}

	s.cache.Set(loaded)
	return loaded
}

func (s *CurrencyService) loadRates() (map[string]models.Currency, error) {
	var currencies []models.Currency
	if err := s.db.Where("is_active = ?", true).Find(&currencies).Error; err != nil {
		return nil, err
	}

	rates := make(map[string]models.Currency, len(currencies)+1)
	for _, cur := range currencies {
		code := strings.ToUpper(cur.Code)
		if cur.Rate <= 0 || cur.Rate < minValidRate || cur.Rate > maxValidRate {
			utils.ErrorLogger.Printf("Skipping currency %s with corrupt rate %v", code, cur.Rate)
			continue
		}
		cur.Code = code
		rates[code] = cur
	}

	// The base currency is always present at 1.0 even if the table is
	// misconfigured.
	if base, ok := rates[s.baseCurrency]; !ok || base.Rate != 1.0 {
		rates[s.baseCurrency] = models.Currency{Code: s.baseCurrency, Rate: 1.0, IsActive: true}
	}

	return rates, nil
}

func (s *CurrencyService) baseOnly() map[string]models.Currency {
	return map[string]models.Currency{
		s.baseCurrency: {Code: s.baseCurrency, Rate: 1.0, IsActive: true},
	}
}

// RoundAmount rounds a monetary amount to two decimals, half-up.
func RoundAmount(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
