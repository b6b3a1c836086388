package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/kis"
	"stock_go/internal/infra/storage"
)

// Broker is the slice of the brokerage client the services depend on.
// Satisfied by *kis.Client.
type Broker interface {
	PlaceOrder(ctx context.Context, market domain.Market, req kis.OrderRequest) (*domain.PlacedOrder, error)
	ModifyOrder(ctx context.Context, market domain.Market, req kis.AmendRequest) (*domain.AmendResult, error)
	CancelOrder(ctx context.Context, market domain.Market, req kis.AmendRequest) (*domain.AmendResult, error)
	OpenOrders(ctx context.Context, market domain.Market) ([]domain.OpenOrder, error)
	Executions(ctx context.Context, market domain.Market) ([]domain.Execution, error)
	Buyable(ctx context.Context, market domain.Market, req kis.BuyableRequest) (*domain.Buyable, error)
}

// OrderService is the order gateway: the only path through which
// brokerage orders are placed, amended, and cancelled. Successful
// mutations are recorded in the ledger.
type OrderService struct {
	broker Broker
	ledger *storage.Storage
	fx     RateSource
	logger *slog.Logger
}

// RateSource supplies the current USD/KRW rate. Zero means unknown.
// Satisfied by *infra.FXClient.
type RateSource interface {
	Rate() decimal.Decimal
}

// NewOrderService wires the gateway. fx may be nil; overseas buyable
// responses then omit the KRW conversion.
func NewOrderService(broker Broker, ledger *storage.Storage, fx RateSource) *OrderService {
	return &OrderService{
		broker: broker,
		ledger: ledger,
		fx:     fx,
		logger: slog.Default().With("module", "order_service"),
	}
}

// PlaceOrderInput is a market-agnostic order intent from a client.
type PlaceOrderInput struct {
	Symbol     string
	SymbolName string
	Market     domain.Market
	Side       domain.Side
	Kind       domain.OrderKind
	Price      decimal.Decimal
	Quantity   int64
	Memo       string
}

func (in *PlaceOrderInput) validate() error {
	if in.Symbol == "" {
		return domain.NewBusinessError("place_order", "symbol is required")
	}
	if !in.Market.Valid() {
		return domain.NewBusinessError("place_order", "market must be KR or US")
	}
	if !in.Side.Valid() {
		return domain.NewBusinessError("place_order", "side must be buy or sell")
	}
	if !in.Kind.Valid() {
		return domain.NewBusinessError("place_order", "order_kind must be limit or market")
	}
	if in.Quantity <= 0 {
		return domain.NewBusinessError("place_order", "quantity must be positive")
	}
	if in.Kind == domain.OrderKindLimit && in.Price.Sign() <= 0 {
		return domain.NewBusinessError("place_order", "limit orders require a positive price")
	}
	return nil
}

// PlaceOrder submits the order to the broker and, on success, records
// it in the ledger in PLACED.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	placed, err := s.broker.PlaceOrder(ctx, in.Market, kis.OrderRequest{
		Symbol:   in.Symbol,
		Side:     in.Side,
		Kind:     in.Kind,
		Price:    in.Price,
		Quantity: in.Quantity,
	})
	if err != nil {
		return nil, err
	}

	order, err := s.ledger.InsertOrder(&domain.Order{
		OrderNo:     placed.OrderNo,
		OrgNo:       placed.OrgNo,
		Symbol:      in.Symbol,
		SymbolName:  in.SymbolName,
		Market:      in.Market,
		Side:        in.Side,
		Kind:        in.Kind,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Status:      domain.OrderStatusPlaced,
		Currency:    in.Market.Currency(),
		Memo:        in.Memo,
		RawResponse: placed.RawResponse,
	})
	if err != nil {
		// The broker accepted the order but the ledger write failed;
		// surface loudly, the record is the source of intent.
		s.logger.Error("ledger write failed after placement",
			slog.String("order_no", placed.OrderNo), slog.Any("error", err))
		return nil, err
	}

	infra.GlobalMetrics.RecordOrderPlaced()
	return order, nil
}

// AmendInput targets a resting order for modify or cancel.
type AmendInput struct {
	OrderNo  string
	OrgNo    string
	Market   domain.Market
	Kind     domain.OrderKind
	Price    decimal.Decimal
	Quantity int64
	All      bool
}

// ModifyOrder amends price/quantity of a resting order. The local
// record keeps its original identity; fills against the new terms are
// picked up by reconciliation.
func (s *OrderService) ModifyOrder(ctx context.Context, in AmendInput) (*domain.AmendResult, error) {
	if !in.Market.Valid() {
		return nil, domain.NewBusinessError("modify_order", "market must be KR or US")
	}
	return s.broker.ModifyOrder(ctx, in.Market, kis.AmendRequest{
		OrderNo:  in.OrderNo,
		OrgNo:    in.OrgNo,
		Kind:     in.Kind,
		Price:    in.Price,
		Quantity: in.Quantity,
		All:      in.All,
	})
}

// CancelOrder cancels a resting order. A full cancel also closes the
// matching ledger record when one exists.
func (s *OrderService) CancelOrder(ctx context.Context, in AmendInput) (*domain.AmendResult, error) {
	if !in.Market.Valid() {
		return nil, domain.NewBusinessError("cancel_order", "market must be KR or US")
	}
	result, err := s.broker.CancelOrder(ctx, in.Market, kis.AmendRequest{
		OrderNo:  in.OrderNo,
		OrgNo:    in.OrgNo,
		Kind:     in.Kind,
		Price:    in.Price,
		Quantity: in.Quantity,
		All:      in.All,
	})
	if err != nil {
		return nil, err
	}

	if in.All {
		local, err := s.ledger.GetOrderByOrderNo(in.OrderNo, in.Market)
		if err == nil && local != nil && local.Status.Active() {
			if _, err := s.ledger.UpdateOrderStatus(local.ID, storage.OrderUpdate{
				Status:      domain.OrderStatusCancelled,
				RawResponse: result.RawResponse,
			}); err != nil {
				s.logger.Warn("ledger cancel update failed",
					slog.String("order_no", in.OrderNo), slog.Any("error", err))
			}
		}
	}

	return result, nil
}

// OpenOrders lists the broker's currently resting orders for a market.
func (s *OrderService) OpenOrders(ctx context.Context, market domain.Market) ([]domain.OpenOrder, error) {
	if !market.Valid() {
		return nil, domain.NewBusinessError("open_orders", "market must be KR or US")
	}
	return s.broker.OpenOrders(ctx, market)
}

// Executions lists the current trading day's fills for a market.
func (s *OrderService) Executions(ctx context.Context, market domain.Market) ([]domain.Execution, error) {
	if !market.Valid() {
		return nil, domain.NewBusinessError("executions", "market must be KR or US")
	}
	return s.broker.Executions(ctx, market)
}

// Buyable answers the affordability inquiry. No ledger write.
func (s *OrderService) Buyable(ctx context.Context, market domain.Market, symbol string, price decimal.Decimal, kind domain.OrderKind) (*domain.Buyable, error) {
	if !market.Valid() {
		return nil, domain.NewBusinessError("buyable", "market must be KR or US")
	}
	b, err := s.broker.Buyable(ctx, market, kis.BuyableRequest{
		Symbol: symbol,
		Price:  price,
		Kind:   kind,
	})
	if err != nil {
		return nil, err
	}
	if market == domain.MarketUS && s.fx != nil {
		if rate := s.fx.Rate(); rate.IsPositive() {
			krw := b.Amount.Mul(rate).Round(0)
			b.ExchangeRate = &rate
			b.AmountKRW = &krw
		}
	}
	return b, nil
}

// History lists the local order ledger, newest first.
func (s *OrderService) History(f storage.OrderFilter) ([]domain.Order, error) {
	return s.ledger.ListOrders(f)
}
