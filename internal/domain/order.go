package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a local order record.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Active reports whether the status is still subject to reconciliation.
func (s OrderStatus) Active() bool {
	return s == OrderStatusPlaced || s == OrderStatusPartial
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// Order is one brokerage order instruction and its known lifecycle.
// The ledger is the only writer; OrderNo is assigned by the broker on
// placement and, once set, is never cleared.
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderNo        string          `gorm:"index" json:"order_no"` // broker order number, unpadded
	OrgNo          string          `json:"org_no"`                // originating organization, needed for amend/cancel
	Symbol         string          `gorm:"index" json:"symbol"`
	SymbolName     string          `json:"symbol_name"`
	Market         Market          `gorm:"index" json:"market"`
	Side           Side            `json:"side"`
	Kind           OrderKind       `json:"order_kind"`
	Price          decimal.Decimal `gorm:"type:TEXT" json:"price"`
	Quantity       int64           `json:"quantity"`
	FilledPrice    decimal.Decimal `gorm:"type:TEXT" json:"filled_price"`
	FilledQuantity int64           `json:"filled_quantity"`
	Status         OrderStatus     `gorm:"index" json:"status"`
	Currency       string          `json:"currency"`
	Memo           string          `json:"memo"`
	RawResponse    string          `json:"-"` // opaque broker response, kept for audit
	PlacedAt       time.Time       `json:"placed_at"`
	FilledAt       *time.Time      `json:"filled_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsOpen reports whether the order may still receive fills.
func (o *Order) IsOpen() bool {
	return o.Status.Active()
}
