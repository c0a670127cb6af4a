package sizing

import (
	"testing"
	"time"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base scenario: 1000 shares at 5% weight in a $2,000,000 portfolio, price $100
func baseContext(t *testing.T, raw string, action model.Action) NormalizationContext {
	t.Helper()
	return NormalizationContext{
		Parse:  Parse(raw, false),
		Action: action,
		Position: model.CurrentPosition{
			Shares:    mustDecimal(t, "1000"),
			WeightPct: mustDecimal(t, "5"),
		},
		Price: model.AssetPrice{
			Price:     mustDecimal(t, "100"),
			Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			Source:    "moex",
		},
		PortfolioValue: mustDecimal(t, "2000000"),
		Rounding:       lotConfig("1", model.MinLotRound, model.RoundNearest),
		Trigger:        model.TriggerUserEdit,
	}
}

func TestNormalize_WeightTargetBuy(t *testing.T) {
	res := Normalize(baseContext(t, "6", model.ActionBuy))

	require.True(t, res.IsValid, "err: %v", res.Err)
	require.NotNil(t, res.Computed)

	assert.True(t, res.Computed.DeltaShares.Equal(mustDecimal(t, "200")), "got %s", res.Computed.DeltaShares)
	assert.True(t, res.Computed.TargetShares.Equal(mustDecimal(t, "1200")))
	assert.True(t, res.Computed.TargetWeight.Equal(mustDecimal(t, "6")))
	assert.True(t, res.Computed.DeltaWeight.Equal(mustDecimal(t, "1")))
	assert.True(t, res.Computed.NotionalValue.Equal(mustDecimal(t, "20000")))
	assert.Equal(t, model.DirectionBuy, res.Computed.Direction)
	assert.Nil(t, res.DirectionConflict)
	assert.False(t, res.BelowLotWarning)
}

func TestNormalize_WeightTargetBelowCurrentConflictsWithBuy(t *testing.T) {
	res := Normalize(baseContext(t, "4", model.ActionBuy))

	require.True(t, res.IsValid)
	assert.True(t, res.Computed.DeltaShares.Equal(mustDecimal(t, "-200")))
	assert.Equal(t, model.DirectionSell, res.Computed.Direction)

	require.NotNil(t, res.DirectionConflict)
	assert.Equal(t, model.ActionBuy, res.DirectionConflict.Action)
	assert.Equal(t, model.DirectionSell, res.DirectionConflict.SuggestedDirection)
	assert.True(t, res.DirectionConflict.SharesChange.Equal(mustDecimal(t, "-200")))
	assert.Equal(t, model.TriggerUserEdit, res.DirectionConflict.Trigger)
	assert.NotEmpty(t, res.DirectionConflict.Message)
}

func TestNormalize_SharesTargetConflictDependsOnAction(t *testing.T) {
	buy := Normalize(baseContext(t, "#800", model.ActionBuy))
	require.True(t, buy.IsValid)
	require.NotNil(t, buy.DirectionConflict)
	assert.Equal(t, model.DirectionSell, buy.DirectionConflict.SuggestedDirection)

	sell := Normalize(baseContext(t, "#800", model.ActionSell))
	require.True(t, sell.IsValid)
	assert.Nil(t, sell.DirectionConflict)
	assert.True(t, sell.Computed.DeltaShares.Equal(mustDecimal(t, "-200")))
}

func TestNormalize_TrimWithPositiveDeltaConflicts(t *testing.T) {
	res := Normalize(baseContext(t, "+0.5", model.ActionTrim))

	require.True(t, res.IsValid)
	require.NotNil(t, res.DirectionConflict)
	assert.Equal(t, model.DirectionBuy, res.DirectionConflict.SuggestedDirection)
}

func TestNormalize_ZeroDeltaNeverConflicts(t *testing.T) {
	for _, action := range []model.Action{model.ActionBuy, model.ActionSell, model.ActionAdd, model.ActionTrim} {
		res := Normalize(baseContext(t, "#1000", action))

		require.True(t, res.IsValid, "action %s", action)
		assert.True(t, res.Computed.DeltaShares.IsZero())
		assert.Nil(t, res.DirectionConflict, "action %s", action)
	}
}

func TestNormalize_BelowLotRoundsToZero(t *testing.T) {
	// +0.01% of $2M at $100 is 2 shares, below a 100 lot
	ctx := baseContext(t, "+0.01", model.ActionBuy)
	ctx.Rounding = lotConfig("100", model.MinLotRound, model.RoundNearest)

	res := Normalize(ctx)

	require.True(t, res.IsValid)
	assert.True(t, res.Computed.DeltaShares.IsZero())
	assert.True(t, res.BelowLotWarning)
	assert.Nil(t, res.DirectionConflict)
	assert.True(t, res.Computed.NotionalValue.IsZero())
}

func TestNormalize_DirectSharesSkipLotRounding(t *testing.T) {
	ctx := baseContext(t, "#+130", model.ActionBuy)
	ctx.Rounding = lotConfig("100", model.MinLotZero, model.RoundNearest)

	res := Normalize(ctx)

	require.True(t, res.IsValid)
	assert.True(t, res.Computed.DeltaShares.Equal(mustDecimal(t, "130")))
	assert.False(t, res.BelowLotWarning)
}

func TestNormalize_ActiveFrameworks(t *testing.T) {
	benchmark := &model.ActiveWeightConfig{BenchmarkWeight: mustDecimal(t, "5.5")}

	ctx := baseContext(t, "", model.ActionBuy)
	ctx.Parse = Parse("@t0.5", true)
	ctx.ActiveWeight = benchmark

	res := Normalize(ctx)

	require.True(t, res.IsValid, "err: %v", res.Err)
	// target weight = benchmark 5.5 + active 0.5 = 6
	assert.True(t, res.Computed.TargetWeight.Equal(mustDecimal(t, "6")))
	assert.True(t, res.Computed.DeltaShares.Equal(mustDecimal(t, "200")))
	require.NotNil(t, res.Computed.TargetActiveWeight)
	require.NotNil(t, res.Computed.DeltaActiveWeight)
	assert.True(t, res.Computed.TargetActiveWeight.Equal(mustDecimal(t, "0.5")))
	assert.True(t, res.Computed.DeltaActiveWeight.Equal(mustDecimal(t, "1")))

	ctx.Parse = Parse("@d+0.5", true)
	res = Normalize(ctx)

	require.True(t, res.IsValid)
	assert.True(t, res.Computed.DeltaWeight.Equal(mustDecimal(t, "0.5")))
	assert.True(t, res.Computed.DeltaShares.Equal(mustDecimal(t, "100")))
}

func TestNormalize_ActiveWithoutBenchmarkConfig(t *testing.T) {
	ctx := baseContext(t, "", model.ActionBuy)
	ctx.Parse = Parse("@t0.5", true) // parsed in a context that promised a benchmark
	ctx.ActiveWeight = nil

	res := Normalize(ctx)

	assert.False(t, res.IsValid)
	assert.ErrorIs(t, res.Err, ErrBenchmarkRequired)
}

func TestNormalize_Preconditions(t *testing.T) {
	t.Run("parse failure", func(t *testing.T) {
		res := Normalize(baseContext(t, "abc", model.ActionBuy))

		assert.False(t, res.IsValid)
		assert.ErrorIs(t, res.Err, ErrMalformedInput)
		assert.Nil(t, res.Computed)
		assert.Nil(t, res.DirectionConflict)
	})

	t.Run("non-positive price", func(t *testing.T) {
		ctx := baseContext(t, "6", model.ActionBuy)
		ctx.Price.Price = decimal.Zero

		res := Normalize(ctx)

		assert.False(t, res.IsValid)
		assert.ErrorIs(t, res.Err, ErrInvalidPrice)
	})

	t.Run("non-positive portfolio value", func(t *testing.T) {
		ctx := baseContext(t, "6", model.ActionBuy)
		ctx.PortfolioValue = decimal.Zero

		res := Normalize(ctx)

		assert.False(t, res.IsValid)
		assert.ErrorIs(t, res.Err, ErrInvalidPortfolioValue)
	})
}

// post-rounding consistency: delta == target - current must hold for shares
// and weights across every framework
func TestNormalize_DeltasConsistentWithTargets(t *testing.T) {
	benchmark := &model.ActiveWeightConfig{BenchmarkWeight: mustDecimal(t, "5.5")}

	raws := []string{"6", "4", "+0.5", "-0.25", "#1200", "#800", "#+100", "#-200", "@t0.5", "@d-0.5"}

	for _, raw := range raws {
		for _, lot := range []string{"1", "100"} {
			ctx := baseContext(t, "", model.ActionBuy)
			ctx.Parse = Parse(raw, true)
			ctx.ActiveWeight = benchmark
			ctx.Rounding = lotConfig(lot, model.MinLotRound, model.RoundNearest)

			res := Normalize(ctx)
			require.True(t, res.IsValid, "raw %q lot %s: %v", raw, lot, res.Err)

			c := res.Computed
			assert.True(t, c.DeltaShares.Equal(c.TargetShares.Sub(ctx.Position.Shares)), "raw %q lot %s", raw, lot)
			assert.True(t, c.DeltaWeight.Equal(c.TargetWeight.Sub(ctx.Position.WeightPct)), "raw %q lot %s", raw, lot)
			assert.True(t, c.NotionalValue.Equal(c.DeltaShares.Abs().Mul(ctx.Price.Price)), "raw %q lot %s", raw, lot)
		}
	}
}

func TestNormalize_TriggerCarriedOnConflict(t *testing.T) {
	ctx := baseContext(t, "4", model.ActionBuy)
	ctx.Trigger = model.TriggerLoadRevalidation

	res := Normalize(ctx)

	require.NotNil(t, res.DirectionConflict)
	assert.Equal(t, model.TriggerLoadRevalidation, res.DirectionConflict.Trigger)
}
