package dbConverter

import (
	"database/sql"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/dbModel"
	"github.com/shopspring/decimal"
)

func ConvertVariant(dbVariant dbModel.Variant) model.Variant {
	variant := model.Variant{
		VariantID:   dbVariant.VariantID,
		LabID:       dbVariant.LabID,
		Ticker:      dbVariant.Ticker,
		Action:      model.Action(dbVariant.Action),
		SizingInput: dbVariant.SizingInput,
		SizingSpec: model.SizingSpec{
			Framework: model.Framework(dbVariant.Framework),
			Value:     dbVariant.SizingValue,
			RawText:   dbVariant.SizingInput,
		},
		IsValid:         dbVariant.IsValid,
		ErrorText:       dbVariant.ErrorText.String,
		BelowLotWarning: dbVariant.BelowLotWarning,
		Position: model.CurrentPosition{
			Shares:    dbVariant.PositionShares,
			WeightPct: dbVariant.PositionWeight,
		},
		Visibility: model.Visibility(dbVariant.Visibility),
		CreatedAt:  dbVariant.CreatedAt,
		UpdatedAt:  dbVariant.UpdatedAt,
	}

	if dbVariant.ViewID.Valid {
		viewID := dbVariant.ViewID.Int64
		variant.ViewID = &viewID
	}

	if dbVariant.DeletedAt.Valid {
		deletedAt := dbVariant.DeletedAt.Time
		variant.DeletedAt = &deletedAt
	}

	if dbVariant.BenchmarkWeight.Valid {
		variant.ActiveWeightCfg = &model.ActiveWeightConfig{BenchmarkWeight: dbVariant.BenchmarkWeight.Decimal}
	}

	if dbVariant.IsValid {
		variant.Computed = &model.ComputedValues{
			Direction:      model.Direction(dbVariant.Direction.String),
			TargetShares:   dbVariant.TargetShares.Decimal,
			TargetWeight:   dbVariant.TargetWeight.Decimal,
			DeltaShares:    dbVariant.DeltaShares.Decimal,
			DeltaWeight:    dbVariant.DeltaWeight.Decimal,
			NotionalValue:  dbVariant.NotionalValue.Decimal,
			PriceUsed:      dbVariant.PriceUsed.Decimal,
			PriceTimestamp: dbVariant.PriceTimestamp.Time,
		}
		if dbVariant.TargetActiveWeight.Valid {
			targetActive := dbVariant.TargetActiveWeight.Decimal
			deltaActive := dbVariant.DeltaActiveWeight.Decimal
			variant.Computed.TargetActiveWeight = &targetActive
			variant.Computed.DeltaActiveWeight = &deltaActive
		}
	}

	if dbVariant.ConflictSuggested.Valid {
		variant.DirectionConflict = &model.DirectionConflict{
			Action:             model.Action(dbVariant.Action),
			SharesChange:       dbVariant.DeltaShares.Decimal,
			SuggestedDirection: model.Direction(dbVariant.ConflictSuggested.String),
			Message:            dbVariant.ConflictMessage.String,
			Trigger:            model.ConflictTrigger(dbVariant.ConflictTrigger.String),
		}
	}

	return variant
}

func ConvertLab(dbLab dbModel.Lab) model.Lab {
	return model.Lab{
		LabID:      dbLab.LabID,
		Name:       dbLab.Name,
		TotalValue: dbLab.TotalValue,
	}
}

func ConvertPosition(dbPosition dbModel.Position) model.CurrentPosition {
	position := model.CurrentPosition{Shares: dbPosition.Shares}
	if dbPosition.CostBasis.Valid {
		costBasis := dbPosition.CostBasis.Decimal
		position.CostBasis = &costBasis
	}
	return position
}

func ConvertTradeSheet(dbSheet dbModel.TradeSheet) model.TradeSheet {
	sheet := model.TradeSheet{
		SheetID:     dbSheet.SheetID,
		LabID:       dbSheet.LabID,
		Name:        dbSheet.Name,
		Description: dbSheet.Description,
		ReportLink:  dbSheet.ReportLink.String,
		CreatedAt:   dbSheet.CreatedAt,
	}
	if dbSheet.ViewID.Valid {
		viewID := dbSheet.ViewID.Int64
		sheet.ViewID = &viewID
	}
	return sheet
}

func DecimalToNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func ConvertVariantToDB(variant model.Variant) dbModel.Variant {
	dbVariant := dbModel.Variant{
		VariantID:       variant.VariantID,
		LabID:           variant.LabID,
		Ticker:          variant.Ticker,
		Action:          string(variant.Action),
		SizingInput:     variant.SizingInput,
		Framework:       string(variant.SizingSpec.Framework),
		SizingValue:     variant.SizingSpec.Value,
		IsValid:         variant.IsValid,
		BelowLotWarning: variant.BelowLotWarning,
		PositionShares:  variant.Position.Shares,
		PositionWeight:  variant.Position.WeightPct,
		Visibility:      string(variant.Visibility),
	}

	if variant.ViewID != nil {
		dbVariant.ViewID = sql.NullInt64{Int64: *variant.ViewID, Valid: true}
	}

	if variant.ErrorText != "" {
		dbVariant.ErrorText = sql.NullString{String: variant.ErrorText, Valid: true}
	}

	if variant.ActiveWeightCfg != nil {
		dbVariant.BenchmarkWeight = decimal.NullDecimal{Decimal: variant.ActiveWeightCfg.BenchmarkWeight, Valid: true}
	}

	if c := variant.Computed; c != nil {
		dbVariant.Direction = sql.NullString{String: string(c.Direction), Valid: true}
		dbVariant.TargetShares = decimal.NullDecimal{Decimal: c.TargetShares, Valid: true}
		dbVariant.TargetWeight = decimal.NullDecimal{Decimal: c.TargetWeight, Valid: true}
		dbVariant.DeltaShares = decimal.NullDecimal{Decimal: c.DeltaShares, Valid: true}
		dbVariant.DeltaWeight = decimal.NullDecimal{Decimal: c.DeltaWeight, Valid: true}
		dbVariant.TargetActiveWeight = DecimalToNull(c.TargetActiveWeight)
		dbVariant.DeltaActiveWeight = DecimalToNull(c.DeltaActiveWeight)
		dbVariant.NotionalValue = decimal.NullDecimal{Decimal: c.NotionalValue, Valid: true}
		dbVariant.PriceUsed = decimal.NullDecimal{Decimal: c.PriceUsed, Valid: true}
		dbVariant.PriceTimestamp = sql.NullTime{Time: c.PriceTimestamp, Valid: true}
	}

	if conflict := variant.DirectionConflict; conflict != nil {
		dbVariant.ConflictSuggested = sql.NullString{String: string(conflict.SuggestedDirection), Valid: true}
		dbVariant.ConflictMessage = sql.NullString{String: conflict.Message, Valid: true}
		dbVariant.ConflictTrigger = sql.NullString{String: string(conflict.Trigger), Valid: true}
	}

	return dbVariant
}
