package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shoporia/backend/models"
	"github.com/shoporia/backend/utils"
)

type OrderController struct {
	DB *gorm.DB
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{DB: db}
}

// CreateOrder records an order awaiting payment. TotalAmount is in the
// base currency.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var body struct {
		CustomerName  string  `json:"customer_name" binding:"required"`
		CustomerEmail string  `json:"customer_email" binding:"required,email"`
		TotalAmount   float64 `json:"total_amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order := models.Order{
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
		OrderStatus:   models.OrderStatusPendingPayment,
		TotalAmount:   body.TotalAmount,
	}
	if err := oc.DB.Create(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetOrderByID returns one order with its payment history.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id := c.Param("order_id")

	var order models.Order
	if err := oc.DB.Preload("Payments").First(&order, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("order not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// GetAllOrders lists orders for the admin dashboard.
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	var orders []models.Order
	if err := oc.DB.Order("created_at DESC").Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All orders", orders)
}
