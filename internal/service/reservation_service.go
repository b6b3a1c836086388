package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/quote"
	"stock_go/internal/infra/storage"
)

// OrderPlacer is the slice of the order gateway the scheduler uses.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error)
}

// ReservationService owns reservation CRUD and the background loop
// that converts triggered reservations into real orders. The loop
// talks to the ledger only through its public operations.
type ReservationService struct {
	ledger   *storage.Storage
	gateway  OrderPlacer
	quotes   quote.Provider
	interval time.Duration
	logger   *slog.Logger

	now    func() time.Time
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReservationService wires the scheduler. interval is the polling
// period between evaluation ticks.
func NewReservationService(ledger *storage.Storage, gateway OrderPlacer, quotes quote.Provider, interval time.Duration) *ReservationService {
	return &ReservationService{
		ledger:   ledger,
		gateway:  gateway,
		quotes:   quotes,
		interval: interval,
		logger:   slog.Default().With("module", "reservation_service"),
		now:      time.Now,
	}
}

// CreateReservationInput is a conditional order intent.
type CreateReservationInput struct {
	Symbol         string
	SymbolName     string
	Market         domain.Market
	Side           domain.Side
	Kind           domain.OrderKind
	Price          decimal.Decimal
	Quantity       int64
	ConditionType  domain.ConditionType
	ConditionValue string
	Memo           string
}

func (in *CreateReservationInput) validate() error {
	if in.Symbol == "" {
		return domain.NewBusinessError("create_reservation", "symbol is required")
	}
	if !in.Market.Valid() {
		return domain.NewBusinessError("create_reservation", "market must be KR or US")
	}
	if !in.Side.Valid() {
		return domain.NewBusinessError("create_reservation", "side must be buy or sell")
	}
	if !in.Kind.Valid() {
		return domain.NewBusinessError("create_reservation", "order_kind must be limit or market")
	}
	if in.Quantity <= 0 {
		return domain.NewBusinessError("create_reservation", "quantity must be positive")
	}
	if !in.ConditionType.Valid() {
		return domain.NewBusinessError("create_reservation", "condition_type must be price_below, price_above or scheduled")
	}
	switch in.ConditionType {
	case domain.ConditionScheduled:
		if _, err := parseScheduleTime(in.ConditionValue); err != nil {
			return domain.NewBusinessError("create_reservation", "condition_value must be a timestamp for scheduled reservations")
		}
	default:
		if _, err := decimal.NewFromString(in.ConditionValue); err != nil {
			return domain.NewBusinessError("create_reservation", "condition_value must be a numeric price threshold")
		}
	}
	return nil
}

// Create registers a reservation in WAITING.
func (s *ReservationService) Create(in CreateReservationInput) (*domain.Reservation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.ledger.InsertReservation(&domain.Reservation{
		Symbol:         in.Symbol,
		SymbolName:     in.SymbolName,
		Market:         in.Market,
		Side:           in.Side,
		Kind:           in.Kind,
		Price:          in.Price,
		Quantity:       in.Quantity,
		ConditionType:  in.ConditionType,
		ConditionValue: in.ConditionValue,
		Memo:           in.Memo,
	})
}

// List returns reservations, optionally filtered by status.
func (s *ReservationService) List(status domain.ReservationStatus) ([]domain.Reservation, error) {
	return s.ledger.ListReservations(status)
}

// Delete removes a reservation while it is still WAITING. Anything
// else reports not-found.
func (s *ReservationService) Delete(id uint) error {
	deleted, err := s.ledger.DeleteReservation(id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NewNotFoundError("delete_reservation", "reservation not found or not in WAITING state")
	}
	return nil
}

// Start launches the evaluation loop. Started once at process startup.
func (s *ReservationService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Info("reservation scheduler started", slog.Duration("interval", s.interval))
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// First evaluation runs immediately rather than one interval in
		s.checkAndExecute(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("reservation scheduler stopped")
				return
			case <-ticker.C:
				s.checkAndExecute(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for the current tick to finish.
func (s *ReservationService) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}
}

// checkAndExecute is one scheduler tick: every WAITING reservation is
// evaluated independently; one failure never stops the rest, and a
// panicking tick is recovered so the next tick still runs.
func (s *ReservationService) checkAndExecute(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("reservation tick panic recovered", slog.Any("panic", rec))
		}
	}()

	waiting, err := s.ledger.ListReservations(domain.ReservationWaiting)
	if err != nil {
		s.logger.Error("listing waiting reservations failed", slog.Any("error", err))
		return
	}

	for i := range waiting {
		r := &waiting[i]
		if err := s.process(ctx, r); err != nil {
			s.logger.Error("reservation processing failed",
				slog.Uint64("id", uint64(r.ID)), slog.Any("error", err))
		}
	}
}

// process evaluates one reservation and, when its condition holds,
// places the stored order. Placement failure is terminal (FAILED); an
// unevaluable condition leaves the reservation WAITING for next tick.
func (s *ReservationService) process(ctx context.Context, r *domain.Reservation) error {
	triggered, err := s.evaluate(ctx, r)
	if err != nil {
		// Not evaluable this tick (quote failure, malformed value);
		// retried next tick.
		s.logger.Debug("condition not evaluable",
			slog.Uint64("id", uint64(r.ID)), slog.Any("error", err))
		return nil
	}
	if !triggered {
		return nil
	}

	order, err := s.gateway.PlaceOrder(ctx, PlaceOrderInput{
		Symbol:     r.Symbol,
		SymbolName: r.SymbolName,
		Market:     r.Market,
		Side:       r.Side,
		Kind:       r.Kind,
		Price:      r.Price,
		Quantity:   r.Quantity,
		Memo:       fmt.Sprintf("auto: reservation %d", r.ID),
	})
	if err != nil {
		if _, uerr := s.ledger.UpdateReservationStatus(r.ID, domain.ReservationFailed, ""); uerr != nil {
			return uerr
		}
		s.logger.Error("reservation placement failed",
			slog.Uint64("id", uint64(r.ID)), slog.String("symbol", r.Symbol), slog.Any("error", err))
		return nil
	}

	if _, err := s.ledger.UpdateReservationStatus(r.ID, domain.ReservationTriggered, order.OrderNo); err != nil {
		return err
	}
	infra.GlobalMetrics.RecordReservationTriggered()
	s.logger.Info("reservation triggered",
		slog.Uint64("id", uint64(r.ID)),
		slog.String("symbol", r.Symbol),
		slog.String("order_no", order.OrderNo))
	return nil
}

func (s *ReservationService) evaluate(ctx context.Context, r *domain.Reservation) (bool, error) {
	switch r.ConditionType {
	case domain.ConditionScheduled:
		target, err := parseScheduleTime(r.ConditionValue)
		if err != nil {
			return false, err
		}
		return !s.now().Before(target), nil

	case domain.ConditionPriceBelow, domain.ConditionPriceAbove:
		threshold, err := decimal.NewFromString(r.ConditionValue)
		if err != nil {
			return false, err
		}
		current, err := s.quotes.CurrentPrice(ctx, r.Symbol, r.Market)
		if err != nil {
			return false, err
		}
		if r.ConditionType == domain.ConditionPriceBelow {
			return current.LessThanOrEqual(threshold), nil
		}
		return current.GreaterThanOrEqual(threshold), nil
	}
	return false, fmt.Errorf("unknown condition type: %s", r.ConditionType)
}

// parseScheduleTime accepts RFC 3339 or a bare local timestamp.
func parseScheduleTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", value, time.Local)
}
