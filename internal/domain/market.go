package domain

// Market identifies the trading venue of a symbol.
type Market string

const (
	MarketKR Market = "KR"
	MarketUS Market = "US"
)

// Valid reports whether the market code is one we route orders for.
func (m Market) Valid() bool {
	return m == MarketKR || m == MarketUS
}

// Currency returns the settlement currency for the market.
func (m Market) Currency() string {
	if m == MarketKR {
		return "KRW"
	}
	return "USD"
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderKind distinguishes limit and market orders.
type OrderKind string

const (
	OrderKindLimit  OrderKind = "limit"
	OrderKindMarket OrderKind = "market"
)

func (k OrderKind) Valid() bool {
	return k == OrderKindLimit || k == OrderKindMarket
}
