package kis

import (
	"context"

	"stock_go/internal/domain"
)

// marketAdapter captures everything that differs between the domestic
// and overseas trading endpoints: paths, TR IDs, request field names,
// the encoding of market-order semantics, and response page shapes.
type marketAdapter interface {
	placePath() string
	placeTRID(side domain.Side) string
	orderBody(cred Credentials, req OrderRequest) map[string]string

	amendPath() string
	amendTRID() string
	amendBody(cred Credentials, req AmendRequest, cancel bool) map[string]string

	openOrders(ctx context.Context, c *Client, cred Credentials) ([]domain.OpenOrder, error)
	executions(ctx context.Context, c *Client, cred Credentials) ([]domain.Execution, error)
	buyable(ctx context.Context, c *Client, cred Credentials, req BuyableRequest) (*domain.Buyable, error)
}

var (
	domestic = &domesticAdapter{}
	overseas = &overseasAdapter{}
)

// adapterFor selects the adapter once per call by market code.
func adapterFor(m domain.Market) marketAdapter {
	if m == domain.MarketKR {
		return domestic
	}
	return overseas
}
