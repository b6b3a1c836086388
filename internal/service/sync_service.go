package service

import (
	"context"
	"log/slog"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/storage"
)

// SyncService reconciles ledger-held active orders against the
// broker's execution records. The ledger is a cache of intent; the
// broker is truth for fills.
type SyncService struct {
	broker Broker
	ledger *storage.Storage
	logger *slog.Logger
}

// NewSyncService wires the reconciliation engine.
func NewSyncService(broker Broker, ledger *storage.Storage) *SyncService {
	return &SyncService{
		broker: broker,
		ledger: ledger,
		logger: slog.Default().With("module", "sync_service"),
	}
}

// SyncOutcome reports what happened to one active order.
type SyncOutcome struct {
	ID        uint               `json:"id"`
	OrderNo   string             `json:"order_no"`
	Action    string             `json:"action"` // updated / no_change / skipped
	NewStatus domain.OrderStatus `json:"new_status,omitempty"`
}

// SyncResult is the full reconciliation report.
type SyncResult struct {
	Synced  int           `json:"synced"`
	Details []SyncOutcome `json:"details"`
	Message string        `json:"message,omitempty"`
}

// SyncOrders runs one reconciliation pass. It fetches executions once
// per market present among the active orders; a failure fetching one
// market's executions is isolated and does not abort the other market.
// Orders whose placement is still in flight (no broker order number)
// are skipped. Running twice with no broker-side change produces zero
// additional writes.
func (s *SyncService) SyncOrders(ctx context.Context) (*SyncResult, error) {
	active, err := s.ledger.ListActiveOrders()
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return &SyncResult{Synced: 0, Message: "no active orders to sync"}, nil
	}

	markets := make(map[domain.Market]bool)
	for _, o := range active {
		markets[o.Market] = true
	}

	execMap := make(map[string]domain.Execution)
	for mkt := range markets {
		execs, err := s.broker.Executions(ctx, mkt)
		if err != nil {
			s.logger.Warn("execution fetch failed, skipping market",
				slog.String("market", string(mkt)), slog.Any("error", err))
			continue
		}
		for _, e := range execs {
			if e.OrderNo != "" {
				execMap[e.OrderNo] = e
			}
		}
	}

	result := &SyncResult{Details: make([]SyncOutcome, 0, len(active))}
	for _, local := range active {
		if local.OrderNo == "" {
			result.Details = append(result.Details, SyncOutcome{
				ID: local.ID, Action: "skipped",
			})
			continue
		}

		exec, ok := execMap[local.OrderNo]
		if !ok {
			// No execution record: the order may still be resting.
			result.Details = append(result.Details, SyncOutcome{
				ID: local.ID, OrderNo: local.OrderNo, Action: "no_change",
			})
			continue
		}

		filledQty := exec.FilledQty
		if filledQty > local.Quantity {
			filledQty = local.Quantity
		}

		newStatus := local.Status
		switch {
		case exec.FilledQty >= local.Quantity:
			newStatus = domain.OrderStatusFilled
		case exec.FilledQty > 0:
			newStatus = domain.OrderStatusPartial
		}

		// PARTIAL to PARTIAL with a larger fill still counts as a change.
		if newStatus == local.Status && filledQty == local.FilledQuantity {
			result.Details = append(result.Details, SyncOutcome{
				ID: local.ID, OrderNo: local.OrderNo, Action: "no_change",
			})
			continue
		}

		filledPrice := exec.FilledPrice
		if _, err := s.ledger.UpdateOrderStatus(local.ID, storage.OrderUpdate{
			Status:         newStatus,
			FilledQuantity: &filledQty,
			FilledPrice:    &filledPrice,
		}); err != nil {
			s.logger.Error("reconciliation update failed",
				slog.Uint64("id", uint64(local.ID)), slog.Any("error", err))
			result.Details = append(result.Details, SyncOutcome{
				ID: local.ID, OrderNo: local.OrderNo, Action: "no_change",
			})
			continue
		}

		result.Synced++
		infra.GlobalMetrics.RecordOrderSynced()
		result.Details = append(result.Details, SyncOutcome{
			ID: local.ID, OrderNo: local.OrderNo, Action: "updated", NewStatus: newStatus,
		})
	}

	return result, nil
}
