package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoporia/backend/models"
)

var currencyTestDBSeq int

func setupCurrencyTestDB(t *testing.T) *gorm.DB {
	currencyTestDBSeq++
	dsn := fmt.Sprintf("file:currency_test_%d?mode=memory&cache=shared", currencyTestDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&models.Currency{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedCurrency(db *gorm.DB, code string, rate float64) {
	db.Create(&models.Currency{Code: code, Rate: rate, IsActive: true})
}

func TestConvertRoundTrip(t *testing.T) {
	db := setupCurrencyTestDB(t)
	seedCurrency(db, "USD", 1.0)
	seedCurrency(db, "NGN", 750.0)

	svc := NewCurrencyService(db, NewRateCache(time.Hour), "USD")

	converted, err := svc.Convert(100.0, "USD", "NGN")
	assert.NoError(t, err)
	assert.Equal(t, 75000.00, converted)

	back, err := svc.Convert(converted, "NGN", "USD")
	assert.NoError(t, err)
	assert.Equal(t, 100.00, back)
}

func TestConvertSameCurrency(t *testing.T) {
	db := setupCurrencyTestDB(t)
	svc := NewCurrencyService(db, NewRateCache(time.Hour), "USD")

	// Same-currency conversion does not consult the rate table at all.
	converted, err := svc.Convert(42.375, "usd", "USD")
	assert.NoError(t, err)
	assert.Equal(t, 42.375, converted)
}

func TestConvertUnknownCurrency(t *testing.T) {
	db := setupCurrencyTestDB(t)
	seedCurrency(db, "USD", 1.0)

	svc := NewCurrencyService(db, NewRateCache(time.Hour), "USD")

	_, err := svc.Convert(10.0, "USD", "XXX")
	var notFound *CurrencyNotFoundError
	assert.True(t, errors.As(err, &notFound))
	assert.Equal(t, "XXX", notFound.Code)
}

func TestCorruptRatesAreSkipped(t *testing.T) {
	db := setupCurrencyTestDB(t)
	seedCurrency(db, "USD", 1.0)
	seedCurrency(db, "GHS", 0)
	seedCurrency(db, "ZAR", -18.5)
	seedCurrency(db, "KES", 5e9)

	svc := NewCurrencyService(db, NewRateCache(time.Hour), "USD")

	for _, code := range []string{"GHS", "ZAR", "KES"} {
		_, err := svc.PairRate("USD", code)
		var notFound *CurrencyNotFoundError
		assert.True(t, errors.As(err, &notFound), "expected %s to be skipped", code)
	}
}

func TestBaseCurrencyAlwaysOne(t *testing.T) {
	db := setupCurrencyTestDB(t)
	// Misconfigured base rate must not distort conversions.
	seedCurrency(db, "USD", 2.0)
	seedCurrency(db, "NGN", 750.0)

	svc := NewCurrencyService(db, NewRateCache(time.Hour), "USD")

	rate, err := svc.PairRate("USD", "NGN")
	assert.NoError(t, err)
	assert.Equal(t, 750.0, rate)
}

func TestRateChangeVisibleAfterInvalidate(t *testing.T) {
	db := setupCurrencyTestDB(t)
	seedCurrency(db, "USD", 1.0)
	seedCurrency(db, "NGN", 750.0)

	svc := NewCurrencyService(db, NewRateCache(time.Hour), "USD")

	rate, err := svc.PairRate("USD", "NGN")
	assert.NoError(t, err)
	assert.Equal(t, 750.0, rate)

	db.Model(&models.Currency{}).Where("code = ?", "NGN").Update("rate", 800.0)

	// Still served from the snapshot.
	rate, err = svc.PairRate("USD", "NGN")
	assert.NoError(t, err)
	assert.Equal(t, 750.0, rate)

	svc.Invalidate()

	rate, err = svc.PairRate("USD", "NGN")
	assert.NoError(t, err)
	assert.Equal(t, 800.0, rate)
}

func TestRatesFallBackToBaseOnDBFailure(t *testing.T) {
	db := setupCurrencyTestDB(t)
	svc := NewCurrencyService(db, NewRateCache(time.Hour), "USD")

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.Close()

	// Reads never fail: base currency stays convertible to itself.
	converted, err := svc.Convert(5.0, "USD", "USD")
	assert.NoError(t, err)
	assert.Equal(t, 5.0, converted)

	_, err = svc.PairRate("USD", "NGN")
	var notFound *CurrencyNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRoundAmount(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.125, 0.13},
		{1.234, 1.23},
		{1.236, 1.24},
		{75000.0, 75000.0},
		{0.0, 0.0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoundAmount(tc.in), "RoundAmount(%v)", tc.in)
	}
}
