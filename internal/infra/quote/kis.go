package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/kis"
)

const (
	trDomesticPrice = "FHKST01010100"
	trOverseasPrice = "HHDFS00000300"
)

// KISProvider fetches prices from the broker's quotation endpoints:
// the exchange-provided latest trade price for domestic symbols and
// the delayed quote for US symbols.
type KISProvider struct {
	baseURL    string
	httpClient *http.Client
	session    *kis.Session
	logger     *slog.Logger
}

// NewKISProvider creates a REST quote provider sharing the broker session.
func NewKISProvider(cfg *infra.Config, session *kis.Session) *KISProvider {
	return &KISProvider{
		baseURL: cfg.Broker.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Broker.TimeoutSec) * time.Second,
		},
		session: session,
		logger:  slog.Default().With("module", "quote"),
	}
}

func (p *KISProvider) CurrentPrice(ctx context.Context, symbol string, market domain.Market) (decimal.Decimal, error) {
	if market == domain.MarketKR {
		return p.domesticPrice(ctx, symbol)
	}
	return p.overseasPrice(ctx, symbol)
}

func (p *KISProvider) domesticPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)

	var out struct {
		Output struct {
			Price string `json:"stck_prpr"`
		} `json:"output"`
	}
	if err := p.getQuote(ctx, "/uapi/domestic-stock/v1/quotations/inquire-price", trDomesticPrice, params, &out); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(out.Output.Price)
	if err != nil || price.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, symbol)
	}
	return price, nil
}

func (p *KISProvider) overseasPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("AUTH", "")
	params.Set("EXCD", "NAS")
	params.Set("SYMB", symbol)

	var out struct {
		Output struct {
			Last string `json:"last"`
		} `json:"output"`
	}
	if err := p.getQuote(ctx, "/uapi/overseas-price/v1/quotations/price", trOverseasPrice, params, &out); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(out.Output.Last)
	if err != nil || price.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, symbol)
	}
	return price, nil
}

func (p *KISProvider) getQuote(ctx context.Context, path, trID string, params url.Values, out interface{}) error {
	token, err := p.session.Token(ctx)
	if err != nil {
		return err
	}
	cred, err := p.session.Credentials()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", cred.AppKey)
	req.Header.Set("appsecret", cred.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrQuoteUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	return nil
}
