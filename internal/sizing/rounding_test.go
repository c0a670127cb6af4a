package sizing

import (
	"testing"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func lotConfig(lotSize string, behavior model.MinLotBehavior, dir model.RoundDirection) model.RoundingConfig {
	return model.RoundingConfig{
		LotSize:        decimal.RequireFromString(lotSize),
		MinLotBehavior: behavior,
		RoundDirection: dir,
	}
}

func TestApplyLotRounding_DirectSharesBypass(t *testing.T) {
	// direct share inputs ignore every lot setting
	cfg := lotConfig("100", model.MinLotZero, model.RoundUp)
	cfg.ZeroThreshold = decimal.RequireFromString("500")

	rounded, warn := ApplyLotRounding(mustDecimal(t, "37.6"), cfg, true)

	assert.True(t, rounded.Equal(mustDecimal(t, "38")))
	assert.False(t, warn)
}

func TestApplyLotRounding_LotSizeOneRoundsToInteger(t *testing.T) {
	cfg := lotConfig("1", model.MinLotRound, model.RoundNearest)

	for _, tt := range []struct{ in, want string }{
		{"2.4", "2"},
		{"2.5", "3"},
		{"-2.4", "-2"},
		{"-2.5", "-3"},
		{"0", "0"},
	} {
		rounded, warn := ApplyLotRounding(mustDecimal(t, tt.in), cfg, false)

		assert.True(t, rounded.Equal(mustDecimal(t, tt.want)), "in %s: want %s, got %s", tt.in, tt.want, rounded)
		assert.False(t, warn)
	}
}

func TestApplyLotRounding_ZeroThreshold(t *testing.T) {
	cfg := lotConfig("100", model.MinLotRoundUpTo, model.RoundNearest)
	cfg.ZeroThreshold = decimal.RequireFromString("10")

	rounded, warn := ApplyLotRounding(mustDecimal(t, "-7"), cfg, false)

	assert.True(t, rounded.IsZero())
	assert.True(t, warn)
}

func TestApplyLotRounding_BelowOneLot(t *testing.T) {
	tests := []struct {
		name     string
		behavior model.MinLotBehavior
		in       string
		want     string
		warn     bool
	}{
		{name: "zero drops the trade", behavior: model.MinLotZero, in: "60", want: "0", warn: true},
		{name: "round_to_one_lot bumps up", behavior: model.MinLotRoundUpTo, in: "60", want: "100", warn: true},
		{name: "round_to_one_lot keeps sign", behavior: model.MinLotRoundUpTo, in: "-60", want: "-100", warn: true},
		{name: "warn keeps magnitude", behavior: model.MinLotWarn, in: "60.4", want: "60", warn: true},
		{name: "warn keeps sign", behavior: model.MinLotWarn, in: "-60.4", want: "-60", warn: true},
		{name: "round above half lot", behavior: model.MinLotRound, in: "60", want: "100", warn: false},
		{name: "round below half lot to zero warns", behavior: model.MinLotRound, in: "40", want: "0", warn: true},
		{name: "round keeps sign", behavior: model.MinLotRound, in: "-60", want: "-100", warn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := lotConfig("100", tt.behavior, model.RoundNearest)

			rounded, warn := ApplyLotRounding(mustDecimal(t, tt.in), cfg, false)

			assert.True(t, rounded.Equal(mustDecimal(t, tt.want)), "want %s, got %s", tt.want, rounded)
			assert.Equal(t, tt.warn, warn)
		})
	}
}

func TestApplyLotRounding_AtOrAboveOneLot(t *testing.T) {
	tests := []struct {
		name string
		dir  model.RoundDirection
		in   string
		want string
	}{
		{name: "nearest down", dir: model.RoundNearest, in: "240", want: "200"},
		{name: "nearest up", dir: model.RoundNearest, in: "260", want: "300"},
		{name: "up", dir: model.RoundUp, in: "201", want: "300"},
		{name: "down", dir: model.RoundDown, in: "299", want: "200"},
		{name: "toward_zero floors magnitude", dir: model.RoundTowardZero, in: "-299", want: "-200"},
		{name: "up keeps sign", dir: model.RoundUp, in: "-201", want: "-300"},
		{name: "exact multiple untouched", dir: model.RoundNearest, in: "300", want: "300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := lotConfig("100", model.MinLotRound, tt.dir)

			rounded, warn := ApplyLotRounding(mustDecimal(t, tt.in), cfg, false)

			assert.True(t, rounded.Equal(mustDecimal(t, tt.want)), "want %s, got %s", tt.want, rounded)
			assert.False(t, warn)
		})
	}
}

func TestApplyLotRounding_SignPreserved(t *testing.T) {
	behaviors := []model.MinLotBehavior{model.MinLotRound, model.MinLotZero, model.MinLotWarn, model.MinLotRoundUpTo}
	inputs := []string{"1", "-1", "55", "-55", "149", "-149", "250", "-250", "1000.5", "-1000.5"}

	for _, behavior := range behaviors {
		cfg := lotConfig("100", behavior, model.RoundNearest)
		for _, in := range inputs {
			delta := mustDecimal(t, in)

			rounded, _ := ApplyLotRounding(delta, cfg, false)

			if !rounded.IsZero() {
				assert.Equal(t, delta.Sign(), rounded.Sign(), "behavior %s, input %s", behavior, in)
			}
		}
	}
}
