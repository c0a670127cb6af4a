package telebotConverter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/tg/tgCallback.go"
	tele "gopkg.in/telebot.v4"
)

var actionTitles = map[model.Action]string{
	model.ActionBuy:  "купить",
	model.ActionSell: "продать",
	model.ActionAdd:  "докупить",
	model.ActionTrim: "сократить",
}

func LabDetailsResponse(page model.LabPage) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	// Заголовок лаборатории
	sb.WriteString(fmt.Sprintf("🧪 Лаборатория: %s\n", page.LabName))
	sb.WriteString(fmt.Sprintf("💰 Стоимость портфеля: %s ₽\n", page.TotalValue.StringFixed(0)))
	sb.WriteString(fmt.Sprintf("📋 Заявок: %d (валидных %d, с ошибками %d)\n", page.Total, page.Valid, page.Invalid))
	if page.Conflicts > 0 {
		sb.WriteString(fmt.Sprintf("⚠️ Конфликтов направления: %d - лист сделок заблокирован\n", page.Conflicts))
	}
	if page.BelowLotWarnings > 0 {
		sb.WriteString(fmt.Sprintf("🔸 Заявок меньше лота: %d\n", page.BelowLotWarnings))
	}
	sb.WriteString(fmt.Sprintf("💵 Общий оборот: %s ₽\n\n", page.TotalNotional.StringFixed(0)))

	conflictBtns := make([]tele.Btn, 0)
	deleteBtns := make([]tele.Btn, 0, len(page.Variants))
	for i, variant := range page.Variants {
		sb.WriteString(fmt.Sprintf("%d. **%s %s** `%s`\n", i+1, actionTitles[variant.Action], variant.Ticker, variant.SizingInput))

		// кнопка удаления есть у каждой заявки, в том числе у невалидных
		deleteBtns = append(deleteBtns, markup.Data(
			fmt.Sprintf("🗑 %s", variant.Ticker),
			tgCallback.DeleteVariantPrefix+strconv.FormatInt(variant.VariantID, 10),
		))

		if !variant.IsValid {
			sb.WriteString(fmt.Sprintf("   ▸ ❌ %s\n\n", variant.ErrorText))
			continue
		}

		if variant.Computed != nil {
			sb.WriteString(fmt.Sprintf("   ▸ Сделка: %s %s шт. на %s ₽\n",
				directionTitle(variant.Computed.Direction),
				variant.Computed.DeltaShares.Abs().StringFixed(0),
				variant.Computed.NotionalValue.StringFixed(0)))
			sb.WriteString(fmt.Sprintf("   ▸ Вес: %s%% → %s%%\n",
				variant.Position.WeightPct.StringFixed(1),
				variant.Computed.TargetWeight.StringFixed(1)))
		}

		if variant.DirectionConflict != nil {
			sb.WriteString(fmt.Sprintf("   ▸ ⚠️ %s\n", variant.DirectionConflict.Message))
			conflictBtns = append(conflictBtns, markup.Data(
				fmt.Sprintf("🔄 %s", variant.Ticker),
				tgCallback.FlipActionPrefix+strconv.FormatInt(variant.VariantID, 10),
			))
		}

		if variant.BelowLotWarning {
			sb.WriteString("   ▸ 🔸 объём меньше лота\n")
		}

		sb.WriteString("\n")
	}

	paginationBtns := make([]tele.Btn, 0, 2)
	if page.CurPage > 1 {
		paginationBtns = append(paginationBtns, markup.Data("предыдущая", tgCallback.PrevPagePrefix+strconv.Itoa(page.CurPage-1)))
	}

	if page.HasNextPage {
		paginationBtns = append(paginationBtns, markup.Data("следующая", tgCallback.NextPagePrefix+strconv.Itoa(page.CurPage+1)))
	}

	addVariantBtn := markup.Data("➕ Добавить заявку", tgCallback.AddVariant)
	sheetBtn := markup.Data("📄 Создать лист сделок", tgCallback.CreateTradeSheet)
	positionBtn := markup.Data("📦 Позиция", tgCallback.SetPosition)
	benchmarkBtn := markup.Data("🎯 Вес в индексе", tgCallback.SetBenchmark)
	valueBtn := markup.Data("💰 Стоимость портфеля", tgCallback.ChangeLabValue)

	markup.Inline(
		markup.Row(addVariantBtn, sheetBtn),
		markup.Row(positionBtn, benchmarkBtn, valueBtn),
		markup.Row(conflictBtns...),
		markup.Row(deleteBtns...),
		markup.Row(paginationBtns...),
	)

	return sb.String(), markup
}

func LabsListResponse(labs []model.Lab) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	if len(labs) == 0 {
		return "У вас пока нет лабораторий. Создайте первую командой /create_lab", markup
	}

	var sb strings.Builder
	sb.WriteString("🧪 Ваши лаборатории:\n\n")

	rows := make([]tele.Row, 0, len(labs))
	for i, lab := range labs {
		sb.WriteString(fmt.Sprintf("%d. %s - %s ₽\n", i+1, lab.Name, lab.TotalValue.StringFixed(0)))
		rows = append(rows, markup.Row(markup.Data(lab.Name, tgCallback.OpenLabPrefix+strconv.FormatInt(lab.LabID, 10))))
	}

	markup.Inline(rows...)

	return sb.String(), markup
}

func TradeSheetCreatedResponse(sheet model.TradeSheet) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Лист сделок №%d «%s» создан\n", sheet.SheetID, sheet.Name))
	if sheet.Description != "" {
		sb.WriteString(sheet.Description + "\n")
	}
	sb.WriteString("Отчёт будет загружен на диск в течение минуты.")
	return sb.String()
}

func directionTitle(direction model.Direction) string {
	if direction == model.DirectionSell {
		return "продажа"
	}
	return "покупка"
}
