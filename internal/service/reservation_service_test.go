package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
)

type fakePlacer struct {
	calls  int
	lastIn PlaceOrderInput
	err    error
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	f.calls++
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{ID: 1, OrderNo: "20551700", Status: domain.OrderStatusPlaced}, nil
}

type fakeQuote struct {
	price decimal.Decimal
	err   error
}

func (f *fakeQuote) CurrentPrice(ctx context.Context, symbol string, market domain.Market) (decimal.Decimal, error) {
	return f.price, f.err
}

type panicQuote struct {
	calls atomic.Int64
}

func (f *panicQuote) CurrentPrice(ctx context.Context, symbol string, market domain.Market) (decimal.Decimal, error) {
	f.calls.Add(1)
	panic("quote provider blew up")
}

func validReservationInput() CreateReservationInput {
	return CreateReservationInput{
		Symbol:         "005930",
		Market:         domain.MarketKR,
		Side:           domain.SideBuy,
		Kind:           domain.OrderKindLimit,
		Price:          decimal.NewFromInt(50000),
		Quantity:       5,
		ConditionType:  domain.ConditionPriceBelow,
		ConditionValue: "50000",
	}
}

func TestCreateReservation(t *testing.T) {
	ledger := setupLedger(t)
	svc := NewReservationService(ledger, &fakePlacer{}, &fakeQuote{}, time.Second)

	r, err := svc.Create(validReservationInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.Status != domain.ReservationWaiting {
		t.Errorf("status = %s, want WAITING", r.Status)
	}
}

func TestCreateReservationValidation(t *testing.T) {
	ledger := setupLedger(t)
	svc := NewReservationService(ledger, &fakePlacer{}, &fakeQuote{}, time.Second)

	cases := []struct {
		name string
		mut  func(*CreateReservationInput)
	}{
		{"missing symbol", func(in *CreateReservationInput) { in.Symbol = "" }},
		{"bad market", func(in *CreateReservationInput) { in.Market = "JP" }},
		{"bad condition type", func(in *CreateReservationInput) { in.ConditionType = "volume_above" }},
		{"non-numeric threshold", func(in *CreateReservationInput) { in.ConditionValue = "cheap" }},
		{"zero quantity", func(in *CreateReservationInput) { in.Quantity = 0 }},
		{"bad schedule time", func(in *CreateReservationInput) {
			in.ConditionType = domain.ConditionScheduled
			in.ConditionValue = "tomorrow"
		}},
	}
	for _, c := range cases {
		in := validReservationInput()
		c.mut(&in)
		if _, err := svc.Create(in); domain.CategoryOf(err) != domain.CategoryBusiness {
			t.Errorf("%s: expected business error, got %v", c.name, err)
		}
	}
}

func TestPriceBelowTriggers(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{price: decimal.NewFromInt(49000)}, time.Second)

	r, _ := svc.Create(validReservationInput())
	svc.checkAndExecute(context.Background())

	if placer.calls != 1 {
		t.Fatalf("placer calls = %d, want 1", placer.calls)
	}
	if !strings.Contains(placer.lastIn.Memo, "reservation") {
		t.Errorf("memo should reference the reservation: %q", placer.lastIn.Memo)
	}

	stored, _ := ledger.GetReservation(r.ID)
	if stored.Status != domain.ReservationTriggered {
		t.Errorf("status = %s, want TRIGGERED", stored.Status)
	}
	if stored.ResultOrderNo != "20551700" {
		t.Errorf("result_order_no = %s", stored.ResultOrderNo)
	}
	if stored.TriggeredAt == nil {
		t.Error("triggered_at not stamped")
	}
}

func TestPriceBelowNotMetStaysWaiting(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{price: decimal.NewFromInt(51000)}, time.Second)

	r, _ := svc.Create(validReservationInput())
	svc.checkAndExecute(context.Background())

	if placer.calls != 0 {
		t.Errorf("placer called with condition unmet")
	}
	stored, _ := ledger.GetReservation(r.ID)
	if stored.Status != domain.ReservationWaiting {
		t.Errorf("status = %s, want WAITING", stored.Status)
	}
}

func TestPriceAboveTriggers(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{price: decimal.NewFromInt(52000)}, time.Second)

	in := validReservationInput()
	in.ConditionType = domain.ConditionPriceAbove
	in.ConditionValue = "52000" // boundary: trigger at >= threshold
	r, _ := svc.Create(in)

	svc.checkAndExecute(context.Background())

	stored, _ := ledger.GetReservation(r.ID)
	if stored.Status != domain.ReservationTriggered {
		t.Errorf("status = %s, want TRIGGERED at boundary", stored.Status)
	}
}

func TestQuoteFailureStaysWaiting(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{err: domain.ErrQuoteUnavailable}, time.Second)

	r, _ := svc.Create(validReservationInput())
	svc.checkAndExecute(context.Background())

	if placer.calls != 0 {
		t.Error("placer must not run when the quote is unavailable")
	}
	stored, _ := ledger.GetReservation(r.ID)
	if stored.Status != domain.ReservationWaiting {
		t.Errorf("status = %s, want WAITING for retry next tick", stored.Status)
	}
}

func TestPlacementFailureIsTerminal(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{err: domain.NewBusinessError("place_order", "주문가능금액 초과")}
	svc := NewReservationService(ledger, placer, &fakeQuote{price: decimal.NewFromInt(49000)}, time.Second)

	r, _ := svc.Create(validReservationInput())
	svc.checkAndExecute(context.Background())

	stored, _ := ledger.GetReservation(r.ID)
	if stored.Status != domain.ReservationFailed {
		t.Fatalf("status = %s, want FAILED", stored.Status)
	}

	// A failed reservation is never retried
	svc.checkAndExecute(context.Background())
	if placer.calls != 1 {
		t.Errorf("placer calls = %d, want 1", placer.calls)
	}
}

func TestScheduledTrigger(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{}, time.Second)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 28, 9, 30, 0, 0, time.Local)
	}

	past := validReservationInput()
	past.ConditionType = domain.ConditionScheduled
	past.ConditionValue = "2026-08-28T09:00:00"
	duePast, _ := svc.Create(past)

	future := validReservationInput()
	future.ConditionType = domain.ConditionScheduled
	future.ConditionValue = "2026-08-28T15:00:00"
	dueFuture, _ := svc.Create(future)

	svc.checkAndExecute(context.Background())

	storedPast, _ := ledger.GetReservation(duePast.ID)
	if storedPast.Status != domain.ReservationTriggered {
		t.Errorf("past schedule: status = %s, want TRIGGERED", storedPast.Status)
	}
	storedFuture, _ := ledger.GetReservation(dueFuture.ID)
	if storedFuture.Status != domain.ReservationWaiting {
		t.Errorf("future schedule: status = %s, want WAITING", storedFuture.Status)
	}
}

func TestOneFailureDoesNotStopOthers(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{price: decimal.NewFromInt(49000)}, time.Second)

	broken := validReservationInput()
	broken.ConditionValue = "50000"
	r1, _ := svc.Create(broken)
	// Corrupt the stored condition value to force an evaluation error
	ledger.InsertReservation(&domain.Reservation{
		Symbol: r1.Symbol, Market: r1.Market, Side: r1.Side, Kind: r1.Kind,
		Price: r1.Price, Quantity: r1.Quantity,
		ConditionType: domain.ConditionPriceBelow, ConditionValue: "not-a-number",
	})

	svc.checkAndExecute(context.Background())

	if placer.calls != 1 {
		t.Errorf("healthy reservation should still trigger, calls = %d", placer.calls)
	}
}

func TestDeleteReservation(t *testing.T) {
	ledger := setupLedger(t)
	svc := NewReservationService(ledger, &fakePlacer{}, &fakeQuote{}, time.Second)

	r, _ := svc.Create(validReservationInput())
	if err := svc.Delete(r.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if err := svc.Delete(r.ID); domain.CategoryOf(err) != domain.CategoryNotFound {
		t.Errorf("deleting twice should report not found, got %v", err)
	}
}

func TestDeleteTriggeredReservationRefused(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{price: decimal.NewFromInt(49000)}, time.Second)

	r, _ := svc.Create(validReservationInput())
	svc.checkAndExecute(context.Background())

	if err := svc.Delete(r.ID); domain.CategoryOf(err) != domain.CategoryNotFound {
		t.Errorf("triggered reservation must not be deletable, got %v", err)
	}
	if stored, _ := ledger.GetReservation(r.ID); stored == nil {
		t.Error("triggered reservation should survive the delete attempt")
	}
}

func TestStartStop(t *testing.T) {
	ledger := setupLedger(t)
	placer := &fakePlacer{}
	svc := NewReservationService(ledger, placer, &fakeQuote{price: decimal.NewFromInt(49000)}, 50*time.Millisecond)

	svc.Create(validReservationInput())

	svc.Start(context.Background())
	defer svc.Stop()

	deadline := time.After(2 * time.Second)
	for {
		reservations, _ := ledger.ListReservations(domain.ReservationTriggered)
		if len(reservations) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("scheduler did not trigger the reservation in time")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestPanickingTickDoesNotStopScheduler(t *testing.T) {
	ledger := setupLedger(t)
	quotes := &panicQuote{}
	svc := NewReservationService(ledger, &fakePlacer{}, quotes, 20*time.Millisecond)

	svc.Create(validReservationInput())

	svc.Start(context.Background())
	defer svc.Stop()

	deadline := time.After(2 * time.Second)
	for quotes.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("scheduler stopped after a panic: %d evaluations", quotes.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	waiting, err := ledger.ListReservations(domain.ReservationWaiting)
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(waiting) != 1 {
		t.Errorf("reservation should stay WAITING after panicking ticks, got %d waiting", len(waiting))
	}
}
