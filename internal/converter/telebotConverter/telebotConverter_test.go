package telebotConverter

import (
	"testing"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/tg/tgCallback.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabDetailsResponse_DeleteButtonPerVariant(t *testing.T) {
	page := model.LabPage{
		LabSummary: model.LabSummary{
			LabName:    "основной",
			TotalValue: decimal.NewFromInt(1_000_000),
			Total:      2,
			Valid:      1,
			Invalid:    1,
		},
		CurPage: 1,
		Variants: []model.Variant{
			{VariantID: 7, Ticker: "SBER", Action: model.ActionBuy, SizingInput: "5", IsValid: true},
			{VariantID: 9, Ticker: "GAZP", Action: model.ActionSell, SizingInput: "##", IsValid: false, ErrorText: "не удалось разобрать ввод"},
		},
	}

	text, markup := LabDetailsResponse(page)
	require.NotNil(t, markup)
	assert.Contains(t, text, "❌ не удалось разобрать ввод")

	uniques := make([]string, 0)
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			uniques = append(uniques, btn.Unique)
		}
	}

	// удалить можно любую заявку, невалидную тоже
	assert.Contains(t, uniques, tgCallback.DeleteVariantPrefix+"7")
	assert.Contains(t, uniques, tgCallback.DeleteVariantPrefix+"9")
}

func TestLabDetailsResponse_FlipButtonOnConflictOnly(t *testing.T) {
	page := model.LabPage{
		LabSummary: model.LabSummary{LabName: "основной", TotalValue: decimal.NewFromInt(500_000), Total: 2, Valid: 2, Conflicts: 1},
		CurPage:    1,
		Variants: []model.Variant{
			{VariantID: 1, Ticker: "SBER", Action: model.ActionBuy, SizingInput: "-5", IsValid: true,
				DirectionConflict: &model.DirectionConflict{Message: "направление buy противоречит знаку сделки", SuggestedDirection: model.DirectionSell}},
			{VariantID: 2, Ticker: "LKOH", Action: model.ActionBuy, SizingInput: "5", IsValid: true},
		},
	}

	_, markup := LabDetailsResponse(page)

	uniques := make([]string, 0)
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			uniques = append(uniques, btn.Unique)
		}
	}

	assert.Contains(t, uniques, tgCallback.FlipActionPrefix+"1")
	assert.NotContains(t, uniques, tgCallback.FlipActionPrefix+"2")
	assert.Contains(t, uniques, tgCallback.DeleteVariantPrefix+"1")
	assert.Contains(t, uniques, tgCallback.DeleteVariantPrefix+"2")
}
