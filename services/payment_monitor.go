package services

import (
	"sync"
	"time"

	"github.com/shoporia/backend/utils"
)

// PaymentMetrics tracks sweep outcomes for the admin dashboard.
type PaymentMetrics struct {
	SweepRuns         int64
	ExpiredPayments   int64
	ReverifiedWindows int64
}

// PaymentMonitor is the background companion of the payment service. On a
// fixed interval it cancels payments whose window elapsed and re-verifies
// processing payments that are close to expiry, covering lost webhooks.
type PaymentMonitor struct {
	service        *PaymentService
	interval       time.Duration
	reverifyWindow time.Duration

	metrics PaymentMetrics
	mu      sync.Mutex
	stop    chan struct{}
}

func NewPaymentMonitor(service *PaymentService) *PaymentMonitor {
	return &PaymentMonitor{
		service:        service,
		interval:       5 * time.Minute,
		reverifyWindow: 10 * time.Minute,
		stop:           make(chan struct{}),
	}
}

// Start launches the sweep goroutine.
func (pm *PaymentMonitor) Start() {
	go pm.run()
	utils.InfoLogger.Println("Payment monitor started")
}

// Stop terminates the sweep goroutine.
func (pm *PaymentMonitor) Stop() {
	close(pm.stop)
}

func (pm *PaymentMonitor) run() {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.Sweep()
		case <-pm.stop:
			return
		}
	}
}

// Sweep runs one expiry-and-reverify pass. Exported so tests and admin
// tooling can trigger it directly.
func (pm *PaymentMonitor) Sweep() {
	expired := pm.service.ExpireStalePayments()
	pm.service.ReverifyExpiringPayments(pm.reverifyWindow)

	pm.mu.Lock()
	pm.metrics.SweepRuns++
	pm.metrics.ExpiredPayments += int64(expired)
	pm.metrics.ReverifiedWindows++
	pm.mu.Unlock()
}

// GetMetrics returns a snapshot of the monitor counters.
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.metrics
}
