package model

import "github.com/shopspring/decimal"

type Lab struct {
	LabID      int64
	Name       string
	TotalValue decimal.Decimal
}

type LabPage struct {
	LabSummary
	CurPage     int
	HasNextPage bool
	Variants    []Variant
}

type LabSummary struct {
	LabName          string
	TotalValue       decimal.Decimal
	Total            int
	Valid            int
	Invalid          int
	Conflicts        int
	BelowLotWarnings int
	TotalNotional    decimal.Decimal
}
