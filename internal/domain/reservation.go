package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConditionType selects how a reservation is evaluated.
type ConditionType string

const (
	ConditionPriceBelow ConditionType = "price_below"
	ConditionPriceAbove ConditionType = "price_above"
	ConditionScheduled  ConditionType = "scheduled"
)

func (c ConditionType) Valid() bool {
	return c == ConditionPriceBelow || c == ConditionPriceAbove || c == ConditionScheduled
}

// ReservationStatus is the lifecycle state of a reservation.
// WAITING is the only state the scheduler evaluates; every other
// state is terminal and never re-entered.
type ReservationStatus string

const (
	ReservationWaiting   ReservationStatus = "WAITING"
	ReservationTriggered ReservationStatus = "TRIGGERED"
	ReservationFailed    ReservationStatus = "FAILED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a conditional order intent that has not yet been
// submitted to the broker. It produces at most one resulting order.
type Reservation struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	Symbol         string            `gorm:"index" json:"symbol"`
	SymbolName     string            `json:"symbol_name"`
	Market         Market            `json:"market"`
	Side           Side              `json:"side"`
	Kind           OrderKind         `json:"order_kind"`
	Price          decimal.Decimal   `gorm:"type:TEXT" json:"price"`
	Quantity       int64             `json:"quantity"`
	ConditionType  ConditionType     `json:"condition_type"`
	ConditionValue string            `json:"condition_value"` // price threshold or RFC 3339 timestamp
	Status         ReservationStatus `gorm:"index" json:"status"`
	ResultOrderNo  string            `json:"result_order_no"`
	Memo           string            `json:"memo"`
	CreatedAt      time.Time         `json:"created_at"`
	TriggeredAt    *time.Time        `json:"triggered_at,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
