package moexModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type RawAssetsInfo struct {
	Securities Securities `json:"securities"`
	Marketdata Marketdata `json:"marketdata"`
}

type Securities struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

type Marketdata struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

type AssetInfo struct {
	Ticker     string
	Shortname  string
	Lotsize    int
	CurrencyID string
	Status     bool
	Price      decimal.Decimal
	UpdatedAt  time.Time
}
