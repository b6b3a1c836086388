package kis

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"stock_go/internal/domain"
)

// Overseas (US) trading TR IDs.
const (
	trOverseasBuy        = "JTTT1002U"
	trOverseasSell       = "JTTT1006U"
	trOverseasAmend      = "TTTS0309U"
	trOverseasOpenOrders = "TTTS3018R"
	trOverseasExecutions = "JTTT3001R"
	trOverseasBuyable    = "TTTS3007R"

	// usExchangeCode routes all US orders: NASD covers NASDAQ, NYSE
	// and AMEX as the combined US venue.
	usExchangeCode = "NASD"
)

// overseasAdapter builds requests for the overseas-stock endpoints.
type overseasAdapter struct{}

func (a *overseasAdapter) placePath() string { return "/uapi/overseas-stock/v1/trading/order" }

func (a *overseasAdapter) placeTRID(side domain.Side) string {
	if side == domain.SideBuy {
		return trOverseasBuy
	}
	return trOverseasSell
}

// kindCode encodes the overseas order division. Unlike the domestic
// market there is no single market-order code: buys use 32 (LOO) and
// sells use 31 (MOO).
func (a *overseasAdapter) kindCode(kind domain.OrderKind, side domain.Side) string {
	if kind != domain.OrderKindMarket {
		return "00"
	}
	if side == domain.SideBuy {
		return "32"
	}
	return "31"
}

func (a *overseasAdapter) orderBody(cred Credentials, req OrderRequest) map[string]string {
	price := "0"
	if req.Kind != domain.OrderKindMarket {
		price = req.Price.String()
	}
	return map[string]string{
		"CANO":            cred.AccountNo,
		"ACNT_PRDT_CD":    cred.AccountProductCode,
		"OVRS_EXCG_CD":    usExchangeCode,
		"PDNO":            req.Symbol,
		"ORD_QTY":         itoa(req.Quantity),
		"OVRS_ORD_UNPR":   price,
		"ORD_SVR_DVSN_CD": "0",
		"ORD_DVSN":        a.kindCode(req.Kind, req.Side),
	}
}

func (a *overseasAdapter) amendPath() string { return "/uapi/overseas-stock/v1/trading/order-rvsecncl" }
func (a *overseasAdapter) amendTRID() string { return trOverseasAmend }

func (a *overseasAdapter) amendBody(cred Credentials, req AmendRequest, cancel bool) map[string]string {
	action := "01"
	price := req.Price.String()
	if cancel {
		action = "02"
		price = "0"
	}
	return map[string]string{
		"CANO":              cred.AccountNo,
		"ACNT_PRDT_CD":      cred.AccountProductCode,
		"OVRS_EXCG_CD":      usExchangeCode,
		"PDNO":              "",
		"ORGN_ODNO":         req.OrderNo,
		"RVSE_CNCL_DVSN_CD": action,
		"ORD_QTY":           itoa(req.Quantity),
		"OVRS_ORD_UNPR":     price,
		"CTAC_TLNO":         "",
		"MGCO_APTM_ODNO":    "",
		"ORD_SVR_DVSN_CD":   "0",
	}
}

func (a *overseasAdapter) openOrders(ctx context.Context, c *Client, cred Credentials) ([]domain.OpenOrder, error) {
	params := url.Values{}
	params.Set("CANO", cred.AccountNo)
	params.Set("ACNT_PRDT_CD", cred.AccountProductCode)
	params.Set("OVRS_EXCG_CD", usExchangeCode)
	params.Set("SORT_SQN", "DS")

	var orders []domain.OpenOrder
	err := c.fetchPaged(ctx, "open_orders", "/uapi/overseas-stock/v1/trading/inquire-nccs",
		trOverseasOpenOrders, params, pageFamily200, func(env *apiEnvelope) error {
			var items []overseasOpenItem
			if len(env.Output) > 0 {
				if err := json.Unmarshal(env.Output, &items); err != nil {
					return domain.NewTransportError("open_orders", err)
				}
			}
			for _, it := range items {
				if it.OrderNo == "" {
					continue
				}
				kind := domain.OrderKindLimit
				if it.KindCode == "31" || it.KindCode == "32" {
					kind = domain.OrderKindMarket
				}
				orders = append(orders, domain.OpenOrder{
					OrderNo:        it.OrderNo,
					OrgNo:          it.OrgNo,
					Symbol:         it.Symbol,
					SymbolName:     it.SymbolName,
					Market:         domain.MarketUS,
					Side:           sideFromCode(it.SideCode),
					Kind:           kind,
					Price:          parseDec(it.Price),
					Quantity:       parseQty(it.Quantity),
					RemainingQty:   parseQty(it.Remaining),
					FilledQty:      parseQty(it.FilledQty),
					OrderedAt:      it.OrderedTime,
					Exchange:       it.Exchange,
					Currency:       "USD",
					APICancellable: true,
				})
			}
			return nil
		})
	return orders, err
}

func (a *overseasAdapter) executions(ctx context.Context, c *Client, cred Credentials) ([]domain.Execution, error) {
	params := url.Values{}
	params.Set("CANO", cred.AccountNo)
	params.Set("ACNT_PRDT_CD", cred.AccountProductCode)
	params.Set("PDNO", "")
	params.Set("ORD_STRT_DT", "")
	params.Set("ORD_END_DT", "")
	params.Set("SLL_BUY_DVSN_CD", "00")
	params.Set("CCLD_NCCS_DVSN", "00")
	params.Set("OVRS_EXCG_CD", usExchangeCode)
	params.Set("SORT_SQN", "DS")

	var execs []domain.Execution
	err := c.fetchPaged(ctx, "executions", "/uapi/overseas-stock/v1/trading/inquire-ccnl",
		trOverseasExecutions, params, pageFamily200, func(env *apiEnvelope) error {
			var items []overseasExecItem
			if len(env.Output) > 0 {
				if err := json.Unmarshal(env.Output, &items); err != nil {
					return domain.NewTransportError("executions", err)
				}
			}
			for _, it := range items {
				if it.OrderNo == "" {
					continue
				}
				execs = append(execs, domain.Execution{
					OrderNo:      it.OrderNo,
					Symbol:       it.Symbol,
					SymbolName:   it.SymbolName,
					Market:       domain.MarketUS,
					Side:         sideFromCode(it.SideCode),
					Price:        parseDec(it.FilledPrice),
					Quantity:     parseQty(it.Quantity),
					FilledQty:    parseQty(it.FilledQty),
					FilledPrice:  parseDec(it.FilledPrice),
					FilledAmount: parseDec(it.FilledAmount),
					OrderedAt:    it.OrderedDate + " " + it.OrderedTime,
					Exchange:     it.Exchange,
					Currency:     "USD",
				})
			}
			return nil
		})
	return execs, err
}

func (a *overseasAdapter) buyable(ctx context.Context, c *Client, cred Credentials, req BuyableRequest) (*domain.Buyable, error) {
	price := "0"
	if !req.Price.IsZero() {
		price = req.Price.String()
	}
	params := url.Values{}
	params.Set("CANO", cred.AccountNo)
	params.Set("ACNT_PRDT_CD", cred.AccountProductCode)
	params.Set("OVRS_EXCG_CD", usExchangeCode)
	params.Set("OVRS_ORD_UNPR", price)
	params.Set("ITEM_CD", req.Symbol)

	env, _, err := c.get(ctx, "buyable", "/uapi/overseas-stock/v1/trading/inquire-psamount",
		trOverseasBuyable, params)
	if err != nil {
		return nil, err
	}

	var out overseasBuyableOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, domain.NewTransportError("buyable", err)
	}
	return &domain.Buyable{
		Amount:   parseDec(out.Cash),
		Quantity: parseQty(out.MaxBuyQty),
		Deposit:  parseDec(out.Deposit),
		Currency: "USD",
	}, nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
