package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Framework string

const (
	WeightTarget Framework = "weight_target"
	WeightDelta  Framework = "weight_delta"
	SharesTarget Framework = "shares_target"
	SharesDelta  Framework = "shares_delta"
	ActiveTarget Framework = "active_target"
	ActiveDelta  Framework = "active_delta"
)

// IsActive reports whether the framework sizes relative to a benchmark weight.
func (f Framework) IsActive() bool {
	return f == ActiveTarget || f == ActiveDelta
}

// IsDirectShares reports whether the user expressed the size in exact share units.
func (f Framework) IsDirectShares() bool {
	return f == SharesTarget || f == SharesDelta
}

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionAdd  Action = "add"
	ActionTrim Action = "trim"
)

func (a Action) IsBuySide() bool {
	return a == ActionBuy || a == ActionAdd
}

func (a Action) IsSellSide() bool {
	return a == ActionSell || a == ActionTrim
}

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// SizingSpec is the canonical form of a parsed sizing expression. RawText keeps
// the exact user input so stored variants re-parse identically on every load.
type SizingSpec struct {
	Framework Framework
	Value     decimal.Decimal
	RawText   string
}

type CurrentPosition struct {
	Shares       decimal.Decimal
	WeightPct    decimal.Decimal
	CostBasis    *decimal.Decimal
	ActiveWeight *decimal.Decimal
}

type MinLotBehavior string

const (
	MinLotRound     MinLotBehavior = "round"
	MinLotZero      MinLotBehavior = "zero"
	MinLotWarn      MinLotBehavior = "warn"
	MinLotRoundUpTo MinLotBehavior = "round_to_one_lot"
)

type RoundDirection string

const (
	RoundNearest    RoundDirection = "nearest"
	RoundUp         RoundDirection = "up"
	RoundDown       RoundDirection = "down"
	RoundTowardZero RoundDirection = "toward_zero"
)

type RoundingConfig struct {
	LotSize        decimal.Decimal
	MinLotBehavior MinLotBehavior
	RoundDirection RoundDirection
	ZeroThreshold  decimal.Decimal
}

type ActiveWeightConfig struct {
	BenchmarkWeight decimal.Decimal
}

type AssetPrice struct {
	Price     decimal.Decimal
	Timestamp time.Time
	Source    string
}

type ComputedValues struct {
	Direction          Direction
	TargetShares       decimal.Decimal
	TargetWeight       decimal.Decimal
	DeltaShares        decimal.Decimal
	DeltaWeight        decimal.Decimal
	TargetActiveWeight *decimal.Decimal
	DeltaActiveWeight  *decimal.Decimal
	NotionalValue      decimal.Decimal
	PriceUsed          decimal.Decimal
	PriceTimestamp     time.Time
}

type ConflictTrigger string

const (
	TriggerUserEdit         ConflictTrigger = "user_edit"
	TriggerLoadRevalidation ConflictTrigger = "load_revalidation"
	TriggerOther            ConflictTrigger = "other"
)

// DirectionConflict is a first-class warning state: the stated action
// contradicts the sign of the rounded share delta. A variant carrying one is
// still valid.
type DirectionConflict struct {
	Action             Action
	SharesChange       decimal.Decimal
	SuggestedDirection Direction
	Message            string
	Trigger            ConflictTrigger
}
