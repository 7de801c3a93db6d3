package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shoporia/backend/services"
	"github.com/shoporia/backend/utils"
	"golang.org/x/time/rate"
)

// PaymentRequestKey is where ValidatePaymentRequest stores the parsed
// body for the handler.
const PaymentRequestKey = "paymentRequest"

// PaymentSecurityHeaders adds stricter headers for payment endpoints.
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Cache-Control", "no-store")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// PaymentRateLimiter bounds payment initialization attempts.
func PaymentRateLimiter() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Second), 10)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(429, gin.H{
				"error":   "too many requests",
				"message": "please wait before making another payment request",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ValidatePaymentRequest binds and validates the initialization body once;
// the handler reads the parsed request from the context so the body is not
// consumed twice.
func ValidatePaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.InitializePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{
				"error":   "invalid request",
				"message": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(PaymentRequestKey, &req)
		c.Next()
	}
}

// LogPaymentRequest records method, path, status and duration of payment
// calls.
func LogPaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		utils.InfoLogger.Printf(
			"Payment Request - Method: %s, Path: %s, Status: %d, Duration: %v",
			method, path, c.Writer.Status(), time.Since(start),
		)
	}
}
