package kis

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stock_go/internal/domain"
)

// apiEnvelope is the common KIS response wrapper. rt_cd "0" means
// success; anything else is a business rejection with msg1 set.
type apiEnvelope struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`

	Output  json.RawMessage `json:"output"`
	Output1 json.RawMessage `json:"output1"`

	// Continuation cursors, echoed per endpoint family
	CtxAreaFK100 string `json:"ctx_area_fk100"`
	CtxAreaNK100 string `json:"ctx_area_nk100"`
	CtxAreaFK200 string `json:"ctx_area_fk200"`
	CtxAreaNK200 string `json:"ctx_area_nk200"`
}

func (e *apiEnvelope) ok() bool { return e.RtCd == "0" }

// placeOutput is the broker acknowledgment of an order placement.
type placeOutput struct {
	OrderNo string `json:"ODNO"`
	OrgNo   string `json:"KRX_FWDG_ORD_ORGNO"`
}

// domesticOpenItem is one row of the domestic amendable-order inquiry
// (TTTC8036R). Order numbers arrive zero-padded to 10 digits here.
type domesticOpenItem struct {
	OrderNo     string `json:"odno"`
	OrgNo       string `json:"ord_gno_brno"`
	Symbol      string `json:"pdno"`
	SymbolName  string `json:"prdt_name"`
	SideCode    string `json:"sll_buy_dvsn_cd"` // 02 = buy
	KindCode    string `json:"ord_dvsn_cd"`
	Price       string `json:"ord_unpr"`
	Quantity    string `json:"ord_qty"`
	Remaining   string `json:"psbl_qty"`
	FilledQty   string `json:"tot_ccld_qty"`
	OrderedTime string `json:"ord_tmd"`
	Channel     string `json:"excg_id_dvsn_cd"` // KRX = OpenAPI, SOR = HTS/MTS routing
}

// overseasOpenItem is one row of the overseas unfilled inquiry (TTTS3018R).
type overseasOpenItem struct {
	OrderNo     string `json:"odno"`
	OrgNo       string `json:"orgn_odno"`
	Symbol      string `json:"pdno"`
	SymbolName  string `json:"prdt_name"`
	SideCode    string `json:"sll_buy_dvsn_cd"`
	KindCode    string `json:"ord_dvsn"`
	Price       string `json:"ft_ord_unpr3"`
	Quantity    string `json:"ft_ord_qty"`
	Remaining   string `json:"nccs_qty"`
	FilledQty   string `json:"ft_ccld_qty"`
	OrderedTime string `json:"ord_tmd"`
	Exchange    string `json:"ovrs_excg_cd"`
}

// domesticExecItem is one row of the domestic daily executions inquiry
// (TTTC8001R, output1).
type domesticExecItem struct {
	OrderNo      string `json:"odno"`
	Symbol       string `json:"pdno"`
	SymbolName   string `json:"prdt_name"`
	SideCode     string `json:"sll_buy_dvsn_cd"`
	AvgPrice     string `json:"avg_prvs"`
	Quantity     string `json:"ord_qty"`
	FilledQty    string `json:"tot_ccld_qty"`
	FilledAmount string `json:"tot_ccld_amt"`
	OrderedDate  string `json:"ord_dt"`
	OrderedTime  string `json:"ord_tmd"`
}

// overseasExecItem is one row of the overseas executions inquiry (JTTT3001R).
type overseasExecItem struct {
	OrderNo      string `json:"odno"`
	Symbol       string `json:"pdno"`
	SymbolName   string `json:"prdt_name"`
	SideCode     string `json:"sll_buy_dvsn_cd"`
	FilledPrice  string `json:"ft_ccld_unpr3"`
	Quantity     string `json:"ft_ord_qty"`
	FilledQty    string `json:"ft_ccld_qty"`
	FilledAmount string `json:"ft_ccld_amt3"`
	OrderedDate  string `json:"ord_dt"`
	OrderedTime  string `json:"ord_tmd"`
	Exchange     string `json:"ovrs_excg_cd"`
}

// domesticBuyableOutput maps TTTC8908R output.
type domesticBuyableOutput struct {
	Cash      string `json:"ord_psbl_cash"`
	MaxBuyQty string `json:"max_buy_qty"`
	Deposit   string `json:"dnca_tot_amt"`
}

// overseasBuyableOutput maps TTTS3007R output.
type overseasBuyableOutput struct {
	Cash      string `json:"frcr_ord_psbl_amt1"`
	MaxBuyQty string `json:"max_buy_qty"`
	Deposit   string `json:"frcr_dncl_amt_2"`
}

// sideFromCode maps the broker's buy/sell division code: 02 = buy.
func sideFromCode(code string) domain.Side {
	if code == "02" {
		return domain.SideBuy
	}
	return domain.SideSell
}

// parseDec parses a broker-formatted numeric string; empty or
// malformed values collapse to zero.
func parseDec(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseQty parses a broker-formatted integer quantity.
func parseQty(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// normalizeOrderNo strips the zero padding some inquiry endpoints apply
// to order numbers ("0020551600" -> "20551600"); amend/cancel calls
// require the unpadded form. Non-numeric values pass through untouched.
func normalizeOrderNo(orderNo string) string {
	if orderNo == "" {
		return orderNo
	}
	for _, r := range orderNo {
		if r < '0' || r > '9' {
			return orderNo
		}
	}
	trimmed := strings.TrimLeft(orderNo, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
