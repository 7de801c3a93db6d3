package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/services"
	"github.com/shoporia/backend/utils"
)

type CurrencyController struct {
	DB       *gorm.DB
	Currency *services.CurrencyService
}

func NewCurrencyController(db *gorm.DB, currency *services.CurrencyService) *CurrencyController {
	return &CurrencyController{DB: db, Currency: currency}
}

// GetAllCurrencies lists the exchange-rate table.
func (cc *CurrencyController) GetAllCurrencies(c *gin.Context) {
	var currencies []models.Currency
	if err := cc.DB.Order("code ASC").Find(&currencies).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All currencies", currencies)
}

// UpsertCurrency creates or updates a rate record and invalidates the
// conversion cache so the change is visible immediately.
func (cc *CurrencyController) UpsertCurrency(c *gin.Context) {
	var body struct {
		Code     string  `json:"code" binding:"required,len=3"`
		Symbol   string  `json:"symbol"`
		Name     string  `json:"name"`
		Rate     float64 `json:"rate" binding:"required,gt=0"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	code := strings.ToUpper(body.Code)
	active := true
	if body.IsActive != nil {
		active = *body.IsActive
	}

	var currency models.Currency
	err := cc.DB.Where("code = ?", code).First(&currency).Error
	switch {
	case err == nil:
		currency.Symbol = body.Symbol
		currency.Name = body.Name
		currency.Rate = body.Rate
		currency.IsActive = active
		err = cc.DB.Save(&currency).Error
	default:
		currency = models.Currency{
			Code:     code,
			Symbol:   body.Symbol,
			Name:     body.Name,
			Rate:     body.Rate,
			IsActive: active,
		}
		err = cc.DB.Create(&currency).Error
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	cc.Currency.Invalidate()
	utils.InfoLogger.Printf("Currency %s upserted with rate %.6f", code, body.Rate)

	utils.RespondJSON(c, http.StatusOK, "Currency saved", currency)
}
