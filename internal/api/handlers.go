package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
	"stock_go/internal/infra/storage"
	"stock_go/internal/service"
)

type placeOrderBody struct {
	Symbol     string          `json:"symbol"`
	SymbolName string          `json:"symbol_name"`
	Market     string          `json:"market"`
	Side       string          `json:"side"`
	Kind       string          `json:"order_kind"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	Memo       string          `json:"memo"`
}

func (s *Server) handlePlaceOrder(c *fiber.Ctx) error {
	var body placeOrderBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Market == "" {
		body.Market = string(domain.MarketKR)
	}

	order, err := s.orders.PlaceOrder(c.Context(), service.PlaceOrderInput{
		Symbol:     body.Symbol,
		SymbolName: body.SymbolName,
		Market:     domain.Market(body.Market),
		Side:       domain.Side(body.Side),
		Kind:       domain.OrderKind(body.Kind),
		Price:      body.Price,
		Quantity:   body.Quantity,
		Memo:       body.Memo,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order": order})
}

type amendOrderBody struct {
	OrgNo    string          `json:"org_no"`
	Market   string          `json:"market"`
	Kind     string          `json:"order_kind"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	All      bool            `json:"all"`
}

func (s *Server) handleModifyOrder(c *fiber.Ctx) error {
	var body amendOrderBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Market == "" {
		body.Market = string(domain.MarketKR)
	}

	result, err := s.orders.ModifyOrder(c.Context(), service.AmendInput{
		OrderNo:  c.Params("order_no"),
		OrgNo:    body.OrgNo,
		Market:   domain.Market(body.Market),
		Kind:     domain.OrderKind(body.Kind),
		Price:    body.Price,
		Quantity: body.Quantity,
		All:      body.All,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleCancelOrder(c *fiber.Ctx) error {
	var body amendOrderBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Market == "" {
		body.Market = string(domain.MarketKR)
	}

	result, err := s.orders.CancelOrder(c.Context(), service.AmendInput{
		OrderNo:  c.Params("order_no"),
		OrgNo:    body.OrgNo,
		Market:   domain.Market(body.Market),
		Kind:     domain.OrderKind(body.Kind),
		Price:    body.Price,
		Quantity: body.Quantity,
		All:      body.All,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleBuyable(c *fiber.Ctx) error {
	market := domain.Market(c.Query("market", string(domain.MarketKR)))
	price, _ := decimal.NewFromString(c.Query("price", "0"))
	kind := domain.OrderKind(c.Query("order_kind", string(domain.OrderKindLimit)))

	buyable, err := s.orders.Buyable(c.Context(), market, c.Query("symbol"), price, kind)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(buyable)
}

func (s *Server) handleOpenOrders(c *fiber.Ctx) error {
	market := domain.Market(c.Query("market", string(domain.MarketKR)))
	orders, err := s.orders.OpenOrders(c.Context(), market)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (s *Server) handleExecutions(c *fiber.Ctx) error {
	market := domain.Market(c.Query("market", string(domain.MarketKR)))
	executions, err := s.orders.Executions(c.Context(), market)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"executions": executions})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 100
	}

	orders, err := s.orders.History(storage.OrderFilter{
		Symbol:   c.Query("symbol"),
		Market:   domain.Market(c.Query("market")),
		Status:   domain.OrderStatus(c.Query("status")),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Limit:    limit,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (s *Server) handleSync(c *fiber.Ctx) error {
	result, err := s.sync.SyncOrders(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(result)
}

type reservationBody struct {
	Symbol         string          `json:"symbol"`
	SymbolName     string          `json:"symbol_name"`
	Market         string          `json:"market"`
	Side           string          `json:"side"`
	Kind           string          `json:"order_kind"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int64           `json:"quantity"`
	ConditionType  string          `json:"condition_type"`
	ConditionValue string          `json:"condition_value"`
	Memo           string          `json:"memo"`
}

func (s *Server) handleCreateReservation(c *fiber.Ctx) error {
	var body reservationBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Market == "" {
		body.Market = string(domain.MarketKR)
	}

	reservation, err := s.reservations.Create(service.CreateReservationInput{
		Symbol:         body.Symbol,
		SymbolName:     body.SymbolName,
		Market:         domain.Market(body.Market),
		Side:           domain.Side(body.Side),
		Kind:           domain.OrderKind(body.Kind),
		Price:          body.Price,
		Quantity:       body.Quantity,
		ConditionType:  domain.ConditionType(body.ConditionType),
		ConditionValue: body.ConditionValue,
		Memo:           body.Memo,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"reservation": reservation})
}

func (s *Server) handleListReservations(c *fiber.Ctx) error {
	status := domain.ReservationStatus(c.Query("status"))
	reservations, err := s.reservations.List(status)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"reservations": reservations})
}

func (s *Server) handleDeleteReservation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid reservation id"})
	}
	if err := s.reservations.Delete(uint(id)); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}
