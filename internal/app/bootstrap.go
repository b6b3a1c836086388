package app

import (
	"log/slog"
	"time"

	"stock_go/internal/api"
	"stock_go/internal/infra"
	"stock_go/internal/infra/kis"
	"stock_go/internal/infra/quote"
	"stock_go/internal/infra/storage"
	"stock_go/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	Session  *kis.Session
	Broker   *kis.Client
	Realtime *quote.RealtimeCache
	Quotes   quote.Provider
	FX       *infra.FXClient

	Orders       *service.OrderService
	Sync         *service.SyncService
	Reservations *service.ReservationService

	Server *api.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, DB, broker, services)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Stock Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	if !cfg.HasCredentials() {
		slog.Warn("⚠️ KIS credentials missing, order endpoints will reject until configured",
			slog.Any("missing", cfg.MissingCredentials()))
	}

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Broker session and client
	b.Session = kis.NewSession(cfg)
	b.Broker = kis.NewClient(cfg, b.Session)
	slog.Info("✅ Broker client ready", slog.String("base_url", cfg.Broker.BaseURL))

	// 5. Quote providers: realtime cache with REST fallback
	b.Realtime = quote.NewRealtimeCache(cfg)
	rest := quote.NewKISProvider(cfg, b.Session)
	b.Quotes = quote.NewCachedProvider(b.Realtime, rest)

	// 6. FX rate for overseas KRW conversion
	b.FX = infra.NewFXClient()

	// 7. Services
	b.Orders = service.NewOrderService(b.Broker, store, b.FX)
	b.Sync = service.NewSyncService(b.Broker, store)
	interval := time.Duration(cfg.Scheduler.PollIntervalSec) * time.Second
	b.Reservations = service.NewReservationService(store, b.Orders, b.Quotes, interval)

	// 8. HTTP API
	b.Server = api.NewServer(b.Orders, b.Sync, b.Reservations)

	return nil
}
