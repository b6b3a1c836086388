package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
)

// Client is the only component allowed to call the brokerage trading
// APIs. It owns the rt_cd/msg1 envelope interpretation, continuation
// pagination, and the session-invalidate-on-token-expiry rule. Market
// differences live in the two marketAdapter implementations.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	logger     *slog.Logger
}

// NewClient creates a broker client sharing the process-wide session.
func NewClient(cfg *infra.Config, session *Session) *Client {
	return &Client{
		baseURL: cfg.Broker.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Broker.TimeoutSec) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		session: session,
		logger:  slog.Default().With("module", "kis_client"),
	}
}

// OrderRequest is a market-agnostic order intent.
type OrderRequest struct {
	Symbol   string
	Side     domain.Side
	Kind     domain.OrderKind
	Price    decimal.Decimal
	Quantity int64
}

// AmendRequest targets a resting order for modify or cancel.
type AmendRequest struct {
	OrderNo  string
	OrgNo    string
	Kind     domain.OrderKind
	Price    decimal.Decimal
	Quantity int64
	All      bool // replace/cancel the full remaining quantity
}

// BuyableRequest is a read-only affordability check.
type BuyableRequest struct {
	Symbol string
	Price  decimal.Decimal
	Kind   domain.OrderKind
}

// PlaceOrder submits an order and returns the broker's acknowledgment.
// It performs no ledger write; the order service owns that.
func (c *Client) PlaceOrder(ctx context.Context, market domain.Market, req OrderRequest) (*domain.PlacedOrder, error) {
	cred, err := c.session.Credentials()
	if err != nil {
		return nil, err
	}
	ad := adapterFor(market)

	env, raw, err := c.post(ctx, "place_order", ad.placePath(), ad.placeTRID(req.Side), ad.orderBody(cred, req))
	if err != nil {
		return nil, err
	}

	var out placeOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, domain.NewTransportError("place_order", err)
	}

	c.logger.Info("order placed",
		slog.String("market", string(market)),
		slog.String("symbol", req.Symbol),
		slog.String("order_no", out.OrderNo))

	return &domain.PlacedOrder{
		OrderNo:     out.OrderNo,
		OrgNo:       out.OrgNo,
		RawResponse: string(raw),
	}, nil
}

// ModifyOrder amends the price/quantity of a resting order.
func (c *Client) ModifyOrder(ctx context.Context, market domain.Market, req AmendRequest) (*domain.AmendResult, error) {
	return c.amend(ctx, "modify_order", market, req, false)
}

// CancelOrder cancels a resting order, fully or partially.
func (c *Client) CancelOrder(ctx context.Context, market domain.Market, req AmendRequest) (*domain.AmendResult, error) {
	return c.amend(ctx, "cancel_order", market, req, true)
}

func (c *Client) amend(ctx context.Context, op string, market domain.Market, req AmendRequest, cancel bool) (*domain.AmendResult, error) {
	cred, err := c.session.Credentials()
	if err != nil {
		return nil, err
	}
	ad := adapterFor(market)

	_, raw, err := c.post(ctx, op, ad.amendPath(), ad.amendTRID(), ad.amendBody(cred, req, cancel))
	if err != nil {
		return nil, err
	}
	return &domain.AmendResult{Success: true, RawResponse: string(raw)}, nil
}

// OpenOrders returns every currently resting order, consuming the
// broker's continuation pagination until exhausted.
func (c *Client) OpenOrders(ctx context.Context, market domain.Market) ([]domain.OpenOrder, error) {
	cred, err := c.session.Credentials()
	if err != nil {
		return nil, err
	}
	return adapterFor(market).openOrders(ctx, c, cred)
}

// Executions returns the current trading day's fills.
func (c *Client) Executions(ctx context.Context, market domain.Market) ([]domain.Execution, error) {
	cred, err := c.session.Credentials()
	if err != nil {
		return nil, err
	}
	return adapterFor(market).executions(ctx, c, cred)
}

// Buyable performs the affordability inquiry. Read-only.
func (c *Client) Buyable(ctx context.Context, market domain.Market, req BuyableRequest) (*domain.Buyable, error) {
	cred, err := c.session.Credentials()
	if err != nil {
		return nil, err
	}
	return adapterFor(market).buyable(ctx, c, cred, req)
}

// ======================================================================================
// Request plumbing
// ======================================================================================

// post sends a mutating call: hashkey is attached best-effort, rt_cd is
// interpreted, and token-expiry rejections invalidate the session.
func (c *Client) post(ctx context.Context, op, path, trID string, body map[string]string) (*apiEnvelope, []byte, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, nil, err
	}
	cred, err := c.session.Credentials()
	if err != nil {
		return nil, nil, err
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, nil, domain.NewTransportError(op, err)
	}

	hashkey := c.session.Hashkey(ctx, bodyBytes)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, nil, domain.NewTransportError(op, err)
	}
	c.setHeaders(req, token, cred, trID, hashkey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		infra.GlobalMetrics.RecordBrokerError()
		return nil, nil, domain.NewTransportError(op, err)
	}
	defer resp.Body.Close()
	infra.GlobalMetrics.RecordBrokerRequest(time.Since(start).Nanoseconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, domain.NewTransportError(op, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, domain.NewTransportError(op, fmt.Errorf("malformed response: %w", err))
	}

	if !env.ok() {
		infra.GlobalMetrics.RecordBrokerError()
		if isTokenExpiry(&env) {
			c.session.Invalidate()
		}
		return nil, nil, domain.NewBusinessError(op, brokerMessage(&env))
	}

	return &env, raw, nil
}

// get sends a read call and returns the envelope plus response headers
// (the continuation flag travels in a header).
func (c *Client) get(ctx context.Context, op, path, trID string, params url.Values) (*apiEnvelope, http.Header, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, nil, err
	}
	cred, err := c.session.Credentials()
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, domain.NewTransportError(op, err)
	}
	c.setHeaders(req, token, cred, trID, "")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		infra.GlobalMetrics.RecordBrokerError()
		return nil, nil, domain.NewTransportError(op, err)
	}
	defer resp.Body.Close()
	infra.GlobalMetrics.RecordBrokerRequest(time.Since(start).Nanoseconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, domain.NewTransportError(op, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, domain.NewTransportError(op, fmt.Errorf("malformed response: %w", err))
	}

	if !env.ok() {
		infra.GlobalMetrics.RecordBrokerError()
		if isTokenExpiry(&env) {
			c.session.Invalidate()
		}
		return nil, nil, domain.NewBusinessError(op, brokerMessage(&env))
	}

	return &env, resp.Header, nil
}

type pageFamily int

const (
	pageFamily100 pageFamily = iota // CTX_AREA_FK100 / NK100
	pageFamily200                   // CTX_AREA_FK200 / NK200
)

// fetchPaged repeats a read call while the broker signals continuation
// (header tr_cont == "M"), carrying the echoed cursor values forward.
// The caller sees one flattened stream of pages.
func (c *Client) fetchPaged(ctx context.Context, op, path, trID string, params url.Values, family pageFamily, page func(*apiEnvelope) error) error {
	fkKey, nkKey := "CTX_AREA_FK100", "CTX_AREA_NK100"
	if family == pageFamily200 {
		fkKey, nkKey = "CTX_AREA_FK200", "CTX_AREA_NK200"
	}

	fk, nk := "", ""
	for {
		params.Set(fkKey, fk)
		params.Set(nkKey, nk)

		env, headers, err := c.get(ctx, op, path, trID, params)
		if err != nil {
			return err
		}
		if err := page(env); err != nil {
			return err
		}

		if headers.Get("tr_cont") != "M" {
			return nil
		}
		if family == pageFamily100 {
			fk, nk = env.CtxAreaFK100, env.CtxAreaNK100
		} else {
			fk, nk = env.CtxAreaFK200, env.CtxAreaNK200
		}
	}
}

func (c *Client) setHeaders(req *http.Request, token string, cred Credentials, trID, hashkey string) {
	req.Header.Set("content-type", "application/json")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", cred.AppKey)
	req.Header.Set("appsecret", cred.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")
	if hashkey != "" {
		req.Header.Set("hashkey", hashkey)
	}
}

// isTokenExpiry detects the broker's token-expired rejection so the
// shared session can be invalidated for the next caller.
func isTokenExpiry(env *apiEnvelope) bool {
	if env.MsgCd == "EGW00123" {
		return true
	}
	return strings.Contains(env.Msg1, "토큰") || strings.Contains(env.Msg1, "Token")
}

func brokerMessage(env *apiEnvelope) string {
	if env.Msg1 != "" {
		return strings.TrimSpace(env.Msg1)
	}
	return "unknown broker error (rt_cd=" + env.RtCd + ")"
}
