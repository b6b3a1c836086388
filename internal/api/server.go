package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/service"
)

// Server exposes the order engine over HTTP.
type Server struct {
	app          *fiber.App
	orders       *service.OrderService
	sync         *service.SyncService
	reservations *service.ReservationService
	logger       *slog.Logger
}

// NewServer builds the fiber app and registers routes.
func NewServer(orders *service.OrderService, sync *service.SyncService, reservations *service.ReservationService) *Server {
	s := &Server{
		app:          fiber.New(fiber.Config{AppName: "stock-go"}),
		orders:       orders,
		sync:         sync,
		reservations: reservations,
		logger:       slog.Default().With("module", "api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	s.app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(infra.GlobalMetrics.Snapshot())
	})

	order := s.app.Group("/api/order")
	order.Post("/place", s.handlePlaceOrder)
	order.Get("/buyable", s.handleBuyable)
	order.Get("/open", s.handleOpenOrders)
	order.Get("/executions", s.handleExecutions)
	order.Get("/history", s.handleHistory)
	order.Post("/sync", s.handleSync)
	order.Post("/reserve", s.handleCreateReservation)
	order.Get("/reserves", s.handleListReservations)
	order.Delete("/reserve/:id", s.handleDeleteReservation)
	order.Post("/:order_no/modify", s.handleModifyOrder)
	order.Post("/:order_no/cancel", s.handleCancelOrder)
}

// Listen serves until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// fail maps the error taxonomy onto HTTP statuses: configuration
// errors mean the whole order subsystem is unavailable (503),
// transport failures are upstream errors (502), broker rejections are
// client errors carrying the broker's message (400).
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch domain.CategoryOf(err) {
	case domain.CategoryConfig:
		status = fiber.StatusServiceUnavailable
	case domain.CategoryTransport:
		status = fiber.StatusBadGateway
	case domain.CategoryBusiness:
		status = fiber.StatusBadRequest
	case domain.CategoryNotFound:
		status = fiber.StatusNotFound
	}
	if errors.Is(err, domain.ErrCredentialsMissing) {
		status = fiber.StatusServiceUnavailable
	}
	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
