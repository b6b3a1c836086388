package infra

import (
	"sync"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := &Metrics{}

	m.RecordBrokerRequest(1000)
	m.RecordBrokerRequest(3000)
	m.RecordBrokerError()
	m.RecordOrderPlaced()
	m.RecordOrderSynced()
	m.RecordOrderSynced()
	m.RecordReservationTriggered()

	snap := m.Snapshot()
	if snap.BrokerRequests != 2 {
		t.Errorf("BrokerRequests = %d, want 2", snap.BrokerRequests)
	}
	if snap.BrokerErrors != 1 {
		t.Errorf("BrokerErrors = %d, want 1", snap.BrokerErrors)
	}
	if snap.OrdersPlaced != 1 {
		t.Errorf("OrdersPlaced = %d, want 1", snap.OrdersPlaced)
	}
	if snap.OrdersSynced != 2 {
		t.Errorf("OrdersSynced = %d, want 2", snap.OrdersSynced)
	}
	if snap.ReservationsTriggered != 1 {
		t.Errorf("ReservationsTriggered = %d, want 1", snap.ReservationsTriggered)
	}
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("AvgLatencyNs = %d, want 2000", snap.AvgLatencyNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := &Metrics{}
	m.RecordBrokerRequest(500)
	m.RecordOrderPlaced()
	m.Reset()

	snap := m.Snapshot()
	if snap.BrokerRequests != 0 || snap.OrdersPlaced != 0 || snap.AvgLatencyNs != 0 {
		t.Errorf("expected zeroed snapshot after reset, got %+v", snap)
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := &Metrics{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordBrokerRequest(100)
				m.RecordOrderSynced()
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.BrokerRequests != 1000 {
		t.Errorf("BrokerRequests = %d, want 1000", snap.BrokerRequests)
	}
	if snap.OrdersSynced != 1000 {
		t.Errorf("OrdersSynced = %d, want 1000", snap.OrdersSynced)
	}
}
