package dbModel

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Variant struct {
	VariantID          int64               `db:"variant_id"`
	LabID              int64               `db:"lab_id"`
	ViewID             sql.NullInt64       `db:"view_id"`
	Ticker             string              `db:"ticker"`
	Action             string              `db:"action"`
	SizingInput        string              `db:"sizing_input"`
	Framework          string              `db:"framework"`
	SizingValue        decimal.Decimal     `db:"sizing_value"`
	IsValid            bool                `db:"is_valid"`
	ErrorText          sql.NullString      `db:"error_text"`
	Direction          sql.NullString      `db:"direction"`
	TargetShares       decimal.NullDecimal `db:"target_shares"`
	TargetWeight       decimal.NullDecimal `db:"target_weight"`
	DeltaShares        decimal.NullDecimal `db:"delta_shares"`
	DeltaWeight        decimal.NullDecimal `db:"delta_weight"`
	TargetActiveWeight decimal.NullDecimal `db:"target_active_weight"`
	DeltaActiveWeight  decimal.NullDecimal `db:"delta_active_weight"`
	NotionalValue      decimal.NullDecimal `db:"notional_value"`
	PriceUsed          decimal.NullDecimal `db:"price_used"`
	PriceTimestamp     sql.NullTime        `db:"price_timestamp"`
	ConflictSuggested  sql.NullString      `db:"conflict_suggested"`
	ConflictMessage    sql.NullString      `db:"conflict_message"`
	ConflictTrigger    sql.NullString      `db:"conflict_trigger"`
	BelowLotWarning    bool                `db:"below_lot_warning"`
	PositionShares     decimal.Decimal     `db:"position_shares"`
	PositionWeight     decimal.Decimal     `db:"position_weight"`
	BenchmarkWeight    decimal.NullDecimal `db:"benchmark_weight"`
	Visibility         string              `db:"visibility"`
	CreatedAt          time.Time           `db:"dt_create"`
	UpdatedAt          time.Time           `db:"dt_update"`
	DeletedAt          sql.NullTime        `db:"dt_delete"`
}
