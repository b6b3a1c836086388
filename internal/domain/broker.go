package domain

import "github.com/shopspring/decimal"

// PlacedOrder is the broker's acknowledgment of a successful placement.
type PlacedOrder struct {
	OrderNo     string // broker order number
	OrgNo       string // originating organization code
	RawResponse string // full broker response body
}

// OpenOrder is a broker-sourced resting order, not persisted locally.
type OpenOrder struct {
	OrderNo        string          `json:"order_no"`
	OrgNo          string          `json:"org_no"`
	Symbol         string          `json:"symbol"`
	SymbolName     string          `json:"symbol_name"`
	Market         Market          `json:"market"`
	Side           Side            `json:"side"`
	Kind           OrderKind       `json:"order_kind"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int64           `json:"quantity"`
	RemainingQty   int64           `json:"remaining_qty"`
	FilledQty      int64           `json:"filled_qty"`
	OrderedAt      string          `json:"ordered_at"`
	Exchange       string          `json:"exchange,omitempty"`
	Currency       string          `json:"currency"`
	Channel        string          `json:"channel,omitempty"` // routing channel, "SOR" = smart order routing
	APICancellable bool            `json:"api_cancellable"`
}

// Execution is a broker-reported fill record for the current trading day.
type Execution struct {
	OrderNo      string          `json:"order_no"`
	Symbol       string          `json:"symbol"`
	SymbolName   string          `json:"symbol_name"`
	Market       Market          `json:"market"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
	FilledQty    int64           `json:"filled_qty"`
	FilledPrice  decimal.Decimal `json:"filled_price"`
	FilledAmount decimal.Decimal `json:"filled_amount"`
	OrderedAt    string          `json:"ordered_at"`
	Exchange     string          `json:"exchange,omitempty"`
	Currency     string          `json:"currency"`
}

// Buyable is the broker's affordability answer for one symbol/price.
type Buyable struct {
	Amount   decimal.Decimal `json:"buyable_amount"`
	Quantity int64           `json:"buyable_quantity"`
	Deposit  decimal.Decimal `json:"deposit"`
	Currency string          `json:"currency"`

	// KRW equivalents, filled for overseas inquiries when an FX rate
	// is available.
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	AmountKRW    *decimal.Decimal `json:"buyable_amount_krw,omitempty"`
}

// AmendResult is the broker acknowledgment for a modify or cancel call.
type AmendResult struct {
	Success     bool   `json:"success"`
	RawResponse string `json:"broker_response"`
}
