package quote

import (
	"context"

	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
)

// Provider supplies the current market price of an instrument. The
// reservation scheduler treats any error as "not evaluable this tick".
type Provider interface {
	CurrentPrice(ctx context.Context, symbol string, market domain.Market) (decimal.Decimal, error)
}

// CachedProvider consults the realtime feed first for domestic symbols
// and falls back to the REST quote endpoints. Foreign symbols always
// take the delayed REST path.
type CachedProvider struct {
	cache *RealtimeCache
	rest  Provider
}

// NewCachedProvider wires the realtime cache in front of a REST provider.
func NewCachedProvider(cache *RealtimeCache, rest Provider) *CachedProvider {
	return &CachedProvider{cache: cache, rest: rest}
}

func (p *CachedProvider) CurrentPrice(ctx context.Context, symbol string, market domain.Market) (decimal.Decimal, error) {
	if market == domain.MarketKR && p.cache != nil {
		if price, ok := p.cache.Price(symbol); ok {
			return price, nil
		}
		p.cache.Watch(symbol)
	}
	return p.rest.CurrentPrice(ctx, symbol, market)
}
