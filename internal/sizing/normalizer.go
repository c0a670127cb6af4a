package sizing

import (
	"errors"
	"fmt"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice          = errors.New("price must be positive")
	ErrInvalidPortfolioValue = errors.New("portfolio value must be positive")
	ErrPriceUnavailable      = errors.New("price unavailable")
)

var hundred = decimal.NewFromInt(100)

type NormalizationContext struct {
	Parse          ParseResult
	Action         model.Action
	Position       model.CurrentPosition
	Price          model.AssetPrice
	PortfolioValue decimal.Decimal
	Rounding       model.RoundingConfig
	ActiveWeight   *model.ActiveWeightConfig
	Trigger        model.ConflictTrigger
}

type NormalizedResult struct {
	IsValid           bool
	Computed          *model.ComputedValues
	DirectionConflict *model.DirectionConflict
	BelowLotWarning   bool
	Err               error
}

// Normalize converts a parsed sizing expression into mutually consistent
// target and delta share/weight values, applies lot rounding and evaluates the
// direction-conflict rule against the rounded delta. The returned numbers are
// all derived from the rounded delta, so the target/delta pairs stay
// consistent after rounding.
func Normalize(ctx NormalizationContext) NormalizedResult {
	if !ctx.Parse.IsValid {
		return invalidResult(ctx.Parse.Err)
	}

	if !ctx.Price.Price.IsPositive() {
		return invalidResult(ErrInvalidPrice)
	}

	if !ctx.PortfolioValue.IsPositive() {
		return invalidResult(ErrInvalidPortfolioValue)
	}

	if ctx.Parse.Framework.IsActive() && ctx.ActiveWeight == nil {
		return invalidResult(ErrBenchmarkRequired)
	}

	var (
		v   = ctx.Parse.Value
		p   = ctx.Price.Price
		w   = ctx.PortfolioValue
		s0  = ctx.Position.Shares
		wt0 = ctx.Position.WeightPct
	)

	var rawDelta decimal.Decimal
	switch ctx.Parse.Framework {
	case model.WeightTarget:
		rawDelta = weightToShares(v.Sub(wt0), w, p)
	case model.WeightDelta:
		rawDelta = weightToShares(v, w, p)
	case model.SharesTarget:
		rawDelta = v.Sub(s0)
	case model.SharesDelta:
		rawDelta = v
	case model.ActiveTarget:
		targetWeight := ctx.ActiveWeight.BenchmarkWeight.Add(v)
		rawDelta = weightToShares(targetWeight.Sub(wt0), w, p)
	case model.ActiveDelta:
		// an active-weight delta maps 1:1 to a portfolio-weight delta
		rawDelta = weightToShares(v, w, p)
	default:
		return invalidResult(fmt.Errorf("unknown sizing framework: %s", ctx.Parse.Framework))
	}

	rounded, belowLot := ApplyLotRounding(rawDelta, ctx.Rounding, ctx.Parse.Framework.IsDirectShares())

	deltaWeight := rounded.Mul(p).Div(w).Mul(hundred)

	direction := model.DirectionBuy
	if rounded.IsNegative() {
		direction = model.DirectionSell
	}

	computed := &model.ComputedValues{
		Direction:      direction,
		TargetShares:   s0.Add(rounded),
		TargetWeight:   wt0.Add(deltaWeight),
		DeltaShares:    rounded,
		DeltaWeight:    deltaWeight,
		NotionalValue:  rounded.Abs().Mul(p),
		PriceUsed:      p,
		PriceTimestamp: ctx.Price.Timestamp,
	}

	if ctx.ActiveWeight != nil {
		targetActive := computed.TargetWeight.Sub(ctx.ActiveWeight.BenchmarkWeight)
		deltaActive := deltaWeight
		computed.TargetActiveWeight = &targetActive
		computed.DeltaActiveWeight = &deltaActive
	}

	return NormalizedResult{
		IsValid:           true,
		Computed:          computed,
		DirectionConflict: detectConflict(ctx.Action, rounded, ctx.Trigger),
		BelowLotWarning:   belowLot,
	}
}

// detectConflict compares the stated action against the sign of the rounded
// share delta. A zero delta never conflicts with any action.
func detectConflict(action model.Action, deltaShares decimal.Decimal, trigger model.ConflictTrigger) *model.DirectionConflict {
	if deltaShares.IsZero() {
		return nil
	}

	var suggested model.Direction
	switch {
	case action.IsBuySide() && deltaShares.IsNegative():
		suggested = model.DirectionSell
	case action.IsSellSide() && deltaShares.IsPositive():
		suggested = model.DirectionBuy
	default:
		return nil
	}

	return &model.DirectionConflict{
		Action:             action,
		SharesChange:       deltaShares,
		SuggestedDirection: suggested,
		Message:            fmt.Sprintf("action %s contradicts computed change of %s shares, suggested direction: %s", action, deltaShares, suggested),
		Trigger:            trigger,
	}
}

func weightToShares(deltaWeight, portfolioValue, price decimal.Decimal) decimal.Decimal {
	return deltaWeight.Div(hundred).Mul(portfolioValue).Div(price)
}

func invalidResult(err error) NormalizedResult {
	return NormalizedResult{Err: err}
}
