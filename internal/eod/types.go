package eod

import "github.com/shopspring/decimal"

// aggRow accumulates one instrument's trades.
type aggRow struct {
	Instrument  string
	Buys        int
	BuyQty      int64
	BuyValue    decimal.Decimal
	Sells       int
	SellQty     int64
	SellValue   decimal.Decimal
	RealizedPnL decimal.Decimal
	Commission  decimal.Decimal
	Wins        int
}

// csvRow is one output line. Money is pre-formatted so the file is stable.
type csvRow struct {
	Instrument     string `csv:"instrument"`
	Buys           int    `csv:"buys"`
	BuyQty         int64  `csv:"buy_qty"`
	BuyAvg         string `csv:"buy_avg"`
	Sells          int    `csv:"sells"`
	SellQty        int64  `csv:"sell_qty"`
	SellAvg        string `csv:"sell_avg"`
	Wins           int    `csv:"wins"`
	RealizedPnL    string `csv:"realized_pnl"`
	Commission     string `csv:"commission"`
	GrossBuyValue  string `csv:"gross_buy_value"`
	GrossSellValue string `csv:"gross_sell_value"`
}
