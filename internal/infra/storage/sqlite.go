package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"stock_go/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the order ledger: the durable, authoritative local record
// of every order and reservation. It owns identity assignment and all
// status transitions; callers decide target states, the ledger never
// invents one.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens the ledger at the default per-user location.
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return NewStorageAt(dbPath)
}

// NewStorageAt opens the ledger at an explicit path.
func NewStorageAt(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go sqlite
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Additive schema evolution only
	if err := db.AutoMigrate(&domain.Order{}, &domain.Reservation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "StockGo", "data", "orders.db"), nil
}

// ======================================================================================
// Order Operations
// ======================================================================================

// InsertOrder creates a new order record and assigns its identity.
// Status defaults to PLACED when unset.
func (s *Storage) InsertOrder(o *domain.Order) (*domain.Order, error) {
	now := time.Now()
	if o.Status == "" {
		o.Status = domain.OrderStatusPlaced
	}
	if o.Currency == "" {
		o.Currency = o.Market.Currency()
	}
	o.PlacedAt = now
	o.UpdatedAt = now
	if err := s.db.Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// OrderUpdate is a partial update applied by UpdateOrderStatus. Nil
// fields are left untouched.
type OrderUpdate struct {
	Status         domain.OrderStatus
	FilledQuantity *int64
	FilledPrice    *decimal.Decimal
	OrderNo        string
	OrgNo          string
	RawResponse    string
}

// UpdateOrderStatus applies a partial update to a single order row.
// A FILLED target stamps the fill timestamp. A non-empty OrderNo,
// once stored, is never overwritten with empty. Returns nil when the
// order does not exist.
func (s *Storage) UpdateOrderStatus(id uint, upd OrderUpdate) (*domain.Order, error) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":     upd.Status,
		"updated_at": now,
	}
	if upd.FilledQuantity != nil {
		fields["filled_quantity"] = *upd.FilledQuantity
	}
	if upd.FilledPrice != nil {
		fields["filled_price"] = *upd.FilledPrice
	}
	if upd.OrderNo != "" {
		fields["order_no"] = upd.OrderNo
	}
	if upd.OrgNo != "" {
		fields["org_no"] = upd.OrgNo
	}
	if upd.RawResponse != "" {
		fields["raw_response"] = upd.RawResponse
	}
	if upd.Status == domain.OrderStatusFilled {
		fields["filled_at"] = now
	}

	res := s.db.Model(&domain.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetOrder(id)
}

// GetOrder retrieves an order by ledger id. Not found returns nil, nil.
func (s *Storage) GetOrder(id uint) (*domain.Order, error) {
	var o domain.Order
	err := s.db.First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByOrderNo looks up the newest order for a broker order number.
func (s *Storage) GetOrderByOrderNo(orderNo string, market domain.Market) (*domain.Order, error) {
	var o domain.Order
	err := s.db.Where("order_no = ? AND market = ?", orderNo, market).
		Order("id DESC").First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// OrderFilter narrows ListOrders. Filters combine conjunctively; dates
// are inclusive calendar days in "2006-01-02" form.
type OrderFilter struct {
	Symbol   string
	Market   domain.Market
	Status   domain.OrderStatus
	DateFrom string
	DateTo   string
	Limit    int
}

// ListOrders returns orders newest-first.
func (s *Storage) ListOrders(f OrderFilter) ([]domain.Order, error) {
	q := s.db.Model(&domain.Order{})
	if f.Symbol != "" {
		q = q.Where("symbol = ?", f.Symbol)
	}
	if f.Market != "" {
		q = q.Where("market = ?", f.Market)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DateFrom != "" {
		from, err := time.ParseInLocation("2006-01-02", f.DateFrom, time.Local)
		if err != nil {
			return nil, domain.NewBusinessError("list_orders", "date_from must be YYYY-MM-DD")
		}
		q = q.Where("placed_at >= ?", from)
	}
	if f.DateTo != "" {
		to, err := time.ParseInLocation("2006-01-02", f.DateTo, time.Local)
		if err != nil {
			return nil, domain.NewBusinessError("list_orders", "date_to must be YYYY-MM-DD")
		}
		q = q.Where("placed_at < ?", to.AddDate(0, 0, 1))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var orders []domain.Order
	err := q.Order("id DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

// ListActiveOrders returns PLACED and PARTIAL orders, newest-first.
func (s *Storage) ListActiveOrders() ([]domain.Order, error) {
	var orders []domain.Order
	err := s.db.Where("status IN ?", []domain.OrderStatus{
		domain.OrderStatusPlaced, domain.OrderStatusPartial,
	}).Order("id DESC").Find(&orders).Error
	return orders, err
}

// ======================================================================================
// Reservation Operations
// ======================================================================================

// InsertReservation creates a reservation in WAITING.
func (s *Storage) InsertReservation(r *domain.Reservation) (*domain.Reservation, error) {
	now := time.Now()
	r.Status = domain.ReservationWaiting
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.db.Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateReservationStatus moves a reservation to a new status. A
// TRIGGERED target stamps the trigger timestamp; resultOrderNo is
// recorded when non-empty. Returns nil when the reservation does not
// exist.
func (s *Storage) UpdateReservationStatus(id uint, status domain.ReservationStatus, resultOrderNo string) (*domain.Reservation, error) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if status == domain.ReservationTriggered {
		fields["triggered_at"] = now
	}
	if resultOrderNo != "" {
		fields["result_order_no"] = resultOrderNo
	}

	res := s.db.Model(&domain.Reservation{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetReservation(id)
}

// GetReservation retrieves a reservation by id. Not found returns nil, nil.
func (s *Storage) GetReservation(id uint) (*domain.Reservation, error) {
	var r domain.Reservation
	err := s.db.First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReservations returns reservations newest-first, optionally
// filtered by status.
func (s *Storage) ListReservations(status domain.ReservationStatus) ([]domain.Reservation, error) {
	q := s.db.Model(&domain.Reservation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reservations []domain.Reservation
	err := q.Order("id DESC").Find(&reservations).Error
	return reservations, err
}

// DeleteReservation removes a reservation only while it is WAITING.
// The status guard lives in the DELETE itself so two callers cannot
// race a terminal transition against a delete.
func (s *Storage) DeleteReservation(id uint) (bool, error) {
	res := s.db.Where("id = ? AND status = ?", id, domain.ReservationWaiting).
		Delete(&domain.Reservation{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
