package kis

import (
	"context"
	"encoding/json"
	"net/url"

	"stock_go/internal/domain"
)

// Domestic (KRX) trading TR IDs.
const (
	trDomesticBuy        = "TTTC0802U"
	trDomesticSell       = "TTTC0801U"
	trDomesticAmend      = "TTTC0803U"
	trDomesticOpenOrders = "TTTC8036R"
	trDomesticExecutions = "TTTC8001R"
	trDomesticBuyable    = "TTTC8908R"
)

// domesticAdapter builds requests for the KRX cash-order endpoints.
type domesticAdapter struct{}

func (a *domesticAdapter) placePath() string { return "/uapi/domestic-stock/v1/trading/order-cash" }

func (a *domesticAdapter) placeTRID(side domain.Side) string {
	if side == domain.SideBuy {
		return trDomesticBuy
	}
	return trDomesticSell
}

// kindCode encodes the domestic order division: 00 limit, 01 market.
func (a *domesticAdapter) kindCode(kind domain.OrderKind) string {
	if kind == domain.OrderKindMarket {
		return "01"
	}
	return "00"
}

func (a *domesticAdapter) orderBody(cred Credentials, req OrderRequest) map[string]string {
	// Market orders carry unit price 0; limit prices are whole won.
	price := "0"
	if req.Kind != domain.OrderKindMarket {
		price = req.Price.Round(0).String()
	}
	return map[string]string{
		"CANO":         cred.AccountNo,
		"ACNT_PRDT_CD": cred.AccountProductCode,
		"PDNO":         req.Symbol,
		"ORD_DVSN":     a.kindCode(req.Kind),
		"ORD_QTY":      itoa(req.Quantity),
		"ORD_UNPR":     price,
	}
}

func (a *domesticAdapter) amendPath() string { return "/uapi/domestic-stock/v1/trading/order-rvsecncl" }
func (a *domesticAdapter) amendTRID() string { return trDomesticAmend }

func (a *domesticAdapter) amendBody(cred Credentials, req AmendRequest, cancel bool) map[string]string {
	action := "01" // amend
	price := req.Price.Round(0).String()
	if cancel {
		action = "02"
		price = "0"
	}
	all := "N"
	if req.All {
		all = "Y"
	}
	return map[string]string{
		"CANO":               cred.AccountNo,
		"ACNT_PRDT_CD":       cred.AccountProductCode,
		"KRX_FWDG_ORD_ORGNO": req.OrgNo,
		// Inquiry endpoints zero-pad order numbers to 10 digits;
		// amend/cancel requires the unpadded form.
		"ORGN_ODNO":          normalizeOrderNo(req.OrderNo),
		"ORD_DVSN":           a.kindCode(req.Kind),
		"RVSE_CNCL_DVSN_CD":  action,
		"ORD_QTY":            itoa(req.Quantity),
		"ORD_UNPR":           price,
		"QTY_ALL_ORD_YN":     all,
	}
}

func (a *domesticAdapter) openOrders(ctx context.Context, c *Client, cred Credentials) ([]domain.OpenOrder, error) {
	params := url.Values{}
	params.Set("CANO", cred.AccountNo)
	params.Set("ACNT_PRDT_CD", cred.AccountProductCode)
	params.Set("INQR_DVSN_1", "1")
	params.Set("INQR_DVSN_2", "0")

	var orders []domain.OpenOrder
	err := c.fetchPaged(ctx, "open_orders", "/uapi/domestic-stock/v1/trading/inquire-psbl-rvsecncl",
		trDomesticOpenOrders, params, pageFamily100, func(env *apiEnvelope) error {
			var items []domesticOpenItem
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
				if it.KindCode == "01" {
					kind = domain.OrderKindMarket
				}
				orders = append(orders, domain.OpenOrder{
					OrderNo:      it.OrderNo,
					OrgNo:        it.OrgNo,
					Symbol:       it.Symbol,
					SymbolName:   it.SymbolName,
					Market:       domain.MarketKR,
					Side:         sideFromCode(it.SideCode),
					Kind:         kind,
					Price:        parseDec(it.Price),
					Quantity:     parseQty(it.Quantity),
					RemainingQty: parseQty(it.Remaining),
					FilledQty:    parseQty(it.FilledQty),
					OrderedAt:    it.OrderedTime,
					Currency:     "KRW",
					Channel:      it.Channel,
					// SOR-routed orders (placed from HTS/MTS) cannot be
					// cancelled through this API; surfaced, not enforced.
					APICancellable: it.Channel != "SOR",
				})
			}
			return nil
		})
	return orders, err
}

func (a *domesticAdapter) executions(ctx context.Context, c *Client, cred Credentials) ([]domain.Execution, error) {
	params := url.Values{}
	params.Set("CANO", cred.AccountNo)
	params.Set("ACNT_PRDT_CD", cred.AccountProductCode)
	params.Set("INQR_STRT_DT", "")
	params.Set("INQR_END_DT", "")
	params.Set("SLL_BUY_DVSN_CD", "00")
	params.Set("INQR_DVSN", "00")
	params.Set("PDNO", "")
	params.Set("CCLD_DVSN", "00")
	params.Set("ORD_GNO_BRNO", "")
	params.Set("ODNO", "")
	params.Set("INQR_DVSN_3", "00")
	params.Set("INQR_DVSN_1", "")

	var execs []domain.Execution
	err := c.fetchPaged(ctx, "executions", "/uapi/domestic-stock/v1/trading/inquire-daily-ccld",
		trDomesticExecutions, params, pageFamily100, func(env *apiEnvelope) error {
			var items []domesticExecItem
			if len(env.Output1) > 0 {
				if err := json.Unmarshal(env.Output1, &items); err != nil {
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
					Market:       domain.MarketKR,
					Side:         sideFromCode(it.SideCode),
					Price:        parseDec(it.AvgPrice),
					Quantity:     parseQty(it.Quantity),
					FilledQty:    parseQty(it.FilledQty),
					FilledPrice:  parseDec(it.AvgPrice),
					FilledAmount: parseDec(it.FilledAmount),
					OrderedAt:    it.OrderedDate + " " + it.OrderedTime,
					Currency:     "KRW",
				})
			}
			return nil
		})
	return execs, err
}

func (a *domesticAdapter) buyable(ctx context.Context, c *Client, cred Credentials, req BuyableRequest) (*domain.Buyable, error) {
	price := "0"
	if !req.Price.IsZero() {
		price = req.Price.Round(0).String()
	}
	params := url.Values{}
	params.Set("CANO", cred.AccountNo)
	params.Set("ACNT_PRDT_CD", cred.AccountProductCode)
	params.Set("PDNO", req.Symbol)
	params.Set("ORD_UNPR", price)
	params.Set("ORD_DVSN", a.kindCode(req.Kind))
	params.Set("CMA_EVLU_AMT_ICLD_YN", "1")
	params.Set("OVRS_ICLD_YN", "1")

	env, _, err := c.get(ctx, "buyable", "/uapi/domestic-stock/v1/trading/inquire-psbl-order",
		trDomesticBuyable, params)
	if err != nil {
		return nil, err
	}

	var out domesticBuyableOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, domain.NewTransportError("buyable", err)
	}
	return &domain.Buyable{
		Amount:   parseDec(out.Cash),
		Quantity: parseQty(out.MaxBuyQty),
		Deposit:  parseDec(out.Deposit),
		Currency: "KRW",
	}, nil
}
