package dbModel

import (
	"github.com/shopspring/decimal"
)

type Lab struct {
	LabID      int64           `db:"lab_id"`
	Name       string          `db:"name"`
	TotalValue decimal.Decimal `db:"total_value"`
}

type Position struct {
	LabID     int64               `db:"lab_id"`
	Ticker    string              `db:"ticker"`
	Shares    decimal.Decimal     `db:"shares"`
	CostBasis decimal.NullDecimal `db:"cost_basis"`
}
