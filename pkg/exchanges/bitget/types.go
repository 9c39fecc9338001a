package bitget

import (
	"fmt"
	"strconv"
)

// apiResponse is the common Bitget v2 envelope.
type apiResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

const codeOK = "00000"

// APIError is a non-success response from the exchange.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitget: code %s: %s", e.Code, e.Msg)
}

type accountData struct {
	MarginCoin    string `json:"marginCoin"`
	Available     string `json:"available"`
	AccountEquity string `json:"accountEquity"`
	UnrealizedPL  string `json:"unrealizedPL"`
}

type orderData struct {
	OrderID   string `json:"orderId"`
	ClientOID string `json:"clientOid"`
}

type orderDetailData struct {
	OrderID    string `json:"orderId"`
	State      string `json:"state"`
	PriceAvg   string `json:"priceAvg"`
	Size       string `json:"size"`
	BaseVolume string `json:"baseVolume"` // filled quantity
}

type positionData struct {
	Symbol           string `json:"symbol"`
	HoldSide         string `json:"holdSide"`
	Total            string `json:"total"`
	OpenPriceAvg     string `json:"openPriceAvg"`
	BreakEvenPrice   string `json:"breakEvenPrice"`
	MarkPrice        string `json:"markPrice"`
	Leverage         string `json:"leverage"`
	UnrealizedPL     string `json:"unrealizedPL"`
	MarginSize       string `json:"marginSize"`
	LiquidationPrice string `json:"liquidationPrice"`
	AchievedProfits  string `json:"achievedProfits"`
	MarginMode       string `json:"marginMode"`
	CTime            string `json:"cTime"`
}

type pendingOrdersData struct {
	EntrustedList []pendingOrderData `json:"entrustedList"`
}

type pendingOrderData struct {
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	TradeSide string `json:"tradeSide"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	OrderType string `json:"orderType"`
	CTime     string `json:"cTime"`
}

type cancelBatchData struct {
	SuccessList []struct {
		OrderID string `json:"orderId"`
	} `json:"successList"`
	FailureList []struct {
		OrderID string `json:"orderId"`
		ErrMsg  string `json:"errorMsg"`
	} `json:"failureList"`
}

// toFloat parses Bitget's string-encoded numbers; empty strings map to 0.
func toFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func toInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
