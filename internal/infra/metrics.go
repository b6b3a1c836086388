package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	brokerRequests       atomic.Uint64
	brokerErrors         atomic.Uint64
	ordersPlaced         atomic.Uint64
	ordersSynced         atomic.Uint64
	reservationsTriggered atomic.Uint64

	// Latency tracking (broker round trips)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordBrokerRequest records one broker API round trip with its latency.
func (m *Metrics) RecordBrokerRequest(latencyNs int64) {
	m.brokerRequests.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordBrokerError records a failed broker call.
func (m *Metrics) RecordBrokerError() {
	m.brokerErrors.Add(1)
}

// RecordOrderPlaced records an accepted order.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderSynced records a ledger row updated by reconciliation.
func (m *Metrics) RecordOrderSynced() {
	m.ordersSynced.Add(1)
}

// RecordReservationTriggered records a reservation converted to an order.
func (m *Metrics) RecordReservationTriggered() {
	m.reservationsTriggered.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	BrokerRequests        uint64    `json:"broker_requests"`
	BrokerErrors          uint64    `json:"broker_errors"`
	OrdersPlaced          uint64    `json:"orders_placed"`
	OrdersSynced          uint64    `json:"orders_synced"`
	ReservationsTriggered uint64    `json:"reservations_triggered"`
	AvgLatencyNs          int64     `json:"avg_latency_ns"`
	Timestamp             time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		BrokerRequests:        m.brokerRequests.Load(),
		BrokerErrors:          m.brokerErrors.Load(),
		OrdersPlaced:          m.ordersPlaced.Load(),
		OrdersSynced:          m.ordersSynced.Load(),
		ReservationsTriggered: m.reservationsTriggered.Load(),
		AvgLatencyNs:          avgLatency,
		Timestamp:             time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.brokerRequests.Store(0)
	m.brokerErrors.Store(0)
	m.ordersPlaced.Store(0)
	m.ordersSynced.Store(0)
	m.reservationsTriggered.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
}
