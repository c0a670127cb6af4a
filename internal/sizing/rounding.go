package sizing

import (
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// ApplyLotRounding adjusts a computed share delta to the configured lot size
// and reports whether the size fell below one full lot. Direct share requests
// are only rounded to whole shares: the user already expressed intent in exact
// share units. The sign of the result always equals the sign of the input
// whenever the result is non-zero.
func ApplyLotRounding(delta decimal.Decimal, cfg model.RoundingConfig, isDirectSharesInput bool) (decimal.Decimal, bool) {
	if isDirectSharesInput {
		return delta.Round(0), false
	}

	if cfg.LotSize.LessThanOrEqual(one) {
		return delta.Round(0), false
	}

	abs := delta.Abs()
	sign := decimal.NewFromInt(int64(delta.Sign()))

	if cfg.ZeroThreshold.IsPositive() && abs.LessThan(cfg.ZeroThreshold) {
		return decimal.Zero, true
	}

	if abs.LessThan(cfg.LotSize) {
		switch cfg.MinLotBehavior {
		case model.MinLotZero:
			return decimal.Zero, true
		case model.MinLotRoundUpTo:
			return cfg.LotSize.Mul(sign), true
		case model.MinLotWarn:
			return abs.Round(0).Mul(sign), true
		default: // round
			rounded := roundToLotMultiple(abs, cfg.LotSize, model.RoundNearest)
			return rounded.Mul(sign), rounded.IsZero()
		}
	}

	return roundToLotMultiple(abs, cfg.LotSize, cfg.RoundDirection).Mul(sign), false
}

func roundToLotMultiple(abs, lotSize decimal.Decimal, dir model.RoundDirection) decimal.Decimal {
	lots := abs.Div(lotSize)
	switch dir {
	case model.RoundUp:
		lots = lots.Ceil()
	case model.RoundDown, model.RoundTowardZero:
		lots = lots.Floor()
	default: // nearest
		lots = lots.Round(0)
	}
	return lots.Mul(lotSize)
}
