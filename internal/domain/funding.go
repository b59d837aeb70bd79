// Package domain defines core data structures shared by the tracker pipeline.
package domain

import "github.com/shopspring/decimal"

// FundingRow current funding rates of one instrument across exchanges.
// A missing rate is decoded from JSON null into an invalid NullDecimal.
type FundingRow struct {
	Symbol        string              `json:"symbol"`
	Binance       decimal.NullDecimal `json:"binance"`
	Bybit         decimal.NullDecimal `json:"bybit"`
	OKX           decimal.NullDecimal `json:"okx"`
	VolumeBinance decimal.NullDecimal `json:"Volume (Binance)"`
}

// ArbitrageRow single arbitrage opportunity.
// LongExchange and ShortExchange are display labels and may embed a rate,
// e.g. "binance (0.012300%)".
type ArbitrageRow struct {
	Symbol        string          `json:"symbol"`
	LongExchange  string          `json:"long_exchange"`
	ShortExchange string          `json:"short_exchange"`
	APR           decimal.Decimal `json:"apr"`
}
