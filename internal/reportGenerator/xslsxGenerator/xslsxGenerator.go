package xslsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/utils"
	"github.com/xuri/excelize/v2"
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, sheet model.TradeSheet, variants []model.Variant) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("sheetID", sheet.SheetID))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(ctx, f, sheet, variants); err != nil {
		return nil, "", err
	}

	// Удаляем лист по умолчанию "Sheet1"
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) fillSheet(ctx context.Context, f *excelize.File, sheet model.TradeSheet, variants []model.Variant) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.fillSheet"

	sheetName := fmt.Sprintf("%d. %s", sheet.SheetID, sheet.Name)
	_, err := f.NewSheet(sheetName)
	if err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	// заявки
	err = f.MergeCell(sheetName, "A1", "F1")
	if err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Заявки")

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"}, // Светло-голубой цвет
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("ошибка применения стиля: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "тикер")
	_ = f.SetCellStr(sheetName, "B2", "направление")
	_ = f.SetCellStr(sheetName, "C2", "кол-во акций")
	_ = f.SetCellStr(sheetName, "D2", "цена")
	_ = f.SetCellStr(sheetName, "E2", "сумма")
	_ = f.SetCellStr(sheetName, "F2", "ввод")

	// позиция и веса
	err = f.MergeCell(sheetName, "G1", "J1")
	if err != nil {
		return err
	}

	f.SetCellValue(sheetName, "G1", "Позиция и веса")

	styleID, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#d9ead3"}, // Светло-зеленый цвет
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "G1", "G1", styleID); err != nil {
		return fmt.Errorf("ошибка применения стиля: %w", err)
	}

	_ = f.SetCellStr(sheetName, "G2", "акций сейчас")
	_ = f.SetCellStr(sheetName, "H2", "акций после")
	_ = f.SetCellStr(sheetName, "I2", "вес сейчас")
	_ = f.SetCellStr(sheetName, "J2", "вес после")

	rowNum := 3
	for _, variant := range variants {
		if variant.Computed == nil {
			continue
		}

		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), variant.Ticker)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), string(variant.Computed.Direction))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), variant.Computed.DeltaShares.Abs().InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), variant.Computed.PriceUsed.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), variant.Computed.NotionalValue.InexactFloat64())
		_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", rowNum), variant.SizingInput)

		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowNum), variant.Position.Shares.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowNum), variant.Computed.TargetShares.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", rowNum), variant.Position.WeightPct.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", rowNum), variant.Computed.TargetWeight.InexactFloat64())

		rowNum++
	}

	// предупреждения по лотности
	warnRows := make([]model.Variant, 0)
	for _, variant := range variants {
		if variant.BelowLotWarning {
			warnRows = append(warnRows, variant)
		}
	}

	if len(warnRows) > 0 {
		rowNum += 2

		err = f.MergeCell(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("C%d", rowNum))
		if err != nil {
			return err
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), "Заявки меньше лота")

		styleID, err = f.NewStyle(&excelize.Style{
			Alignment: &excelize.Alignment{
				Horizontal: "center",
				Vertical:   "center",
			},
			Font: &excelize.Font{
				Bold: true,
				Size: 11,
			},
			Fill: excelize.Fill{
				Type:    "pattern",
				Pattern: 1,
				Color:   []string{"#f9cb9c"}, // Светло-оранжевый цвет
			},
		})
		if err != nil {
			return err
		}

		if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("A%d", rowNum), styleID); err != nil {
			return fmt.Errorf("ошибка применения стиля: %w", err)
		}

		rowNum++
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "тикер")
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), "кол-во акций")
		_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), "ввод")

		for _, variant := range warnRows {
			rowNum++
			_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), variant.Ticker)
			if variant.Computed != nil {
				_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), variant.Computed.DeltaShares.Abs().InexactFloat64())
			}
			_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), variant.SizingInput)
		}
	}

	// описание
	if sheet.Description != "" {
		rowNum += 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "Описание")
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), sheet.Description)
	}

	return nil
}
