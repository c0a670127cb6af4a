package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/data/repository"
	"github.com/KotFed0t/trade_lab_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/dbModel"
	"github.com/KotFed0t/trade_lab_bot/utils"
)

const variantColumns = `
	variant_id, lab_id, view_id, ticker, action, sizing_input, framework, sizing_value,
	is_valid, error_text, direction, target_shares, target_weight, delta_shares, delta_weight,
	target_active_weight, delta_active_weight, notional_value, price_used, price_timestamp,
	conflict_suggested, conflict_message, conflict_trigger, below_lot_warning,
	position_shares, position_weight, benchmark_weight, visibility, dt_create, dt_update, dt_delete`

func (r *Postgres) InsertVariant(ctx context.Context, variant dbModel.Variant) (variantID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO lab_variants(
			lab_id, view_id, ticker, action, sizing_input, framework, sizing_value,
			is_valid, error_text, direction, target_shares, target_weight, delta_shares, delta_weight,
			target_active_weight, delta_active_weight, notional_value, price_used, price_timestamp,
			conflict_suggested, conflict_message, conflict_trigger, below_lot_warning,
			position_shares, position_weight, benchmark_weight, visibility
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		) RETURNING variant_id
		`

	slog.Debug("InsertVariant start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertVariant failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertVariant completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query,
		variant.LabID, variant.ViewID, variant.Ticker, variant.Action, variant.SizingInput,
		variant.Framework, variant.SizingValue, variant.IsValid, variant.ErrorText, variant.Direction,
		variant.TargetShares, variant.TargetWeight, variant.DeltaShares, variant.DeltaWeight,
		variant.TargetActiveWeight, variant.DeltaActiveWeight, variant.NotionalValue,
		variant.PriceUsed, variant.PriceTimestamp, variant.ConflictSuggested, variant.ConflictMessage,
		variant.ConflictTrigger, variant.BelowLotWarning, variant.PositionShares, variant.PositionWeight,
		variant.BenchmarkWeight, variant.Visibility,
	).Scan(&variantID)
	if err != nil {
		return 0, mapErr(err)
	}

	return variantID, nil
}

// UpdateVariantNormalization rewrites every normalization-derived column of a
// variant. Identity, ticker and visibility are untouched.
func (r *Postgres) UpdateVariantNormalization(ctx context.Context, variant dbModel.Variant) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		UPDATE lab_variants SET
			action = $1, sizing_input = $2, framework = $3, sizing_value = $4,
			is_valid = $5, error_text = $6, direction = $7,
			target_shares = $8, target_weight = $9, delta_shares = $10, delta_weight = $11,
			target_active_weight = $12, delta_active_weight = $13, notional_value = $14,
			price_used = $15, price_timestamp = $16,
			conflict_suggested = $17, conflict_message = $18, conflict_trigger = $19,
			below_lot_warning = $20, position_shares = $21, position_weight = $22,
			benchmark_weight = $23, dt_update = now()
		WHERE variant_id = $24
		`

	slog.Debug("UpdateVariantNormalization start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateVariantNormalization failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateVariantNormalization completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query,
		variant.Action, variant.SizingInput, variant.Framework, variant.SizingValue,
		variant.IsValid, variant.ErrorText, variant.Direction,
		variant.TargetShares, variant.TargetWeight, variant.DeltaShares, variant.DeltaWeight,
		variant.TargetActiveWeight, variant.DeltaActiveWeight, variant.NotionalValue,
		variant.PriceUsed, variant.PriceTimestamp, variant.ConflictSuggested, variant.ConflictMessage,
		variant.ConflictTrigger, variant.BelowLotWarning, variant.PositionShares, variant.PositionWeight,
		variant.BenchmarkWeight, variant.VariantID,
	)
	if err != nil {
		return mapErr(err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SoftDeleteVariant moves a variant to the trash tier. Rows are never
// physically removed, for auditability.
func (r *Postgres) SoftDeleteVariant(ctx context.Context, variantID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		UPDATE lab_variants
		SET visibility = 'trash', dt_delete = now(), dt_update = now()
		WHERE variant_id = $1 AND visibility = 'active'
		`

	slog.Debug("SoftDeleteVariant start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("SoftDeleteVariant failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("SoftDeleteVariant completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, variantID)
	if err != nil {
		return mapErr(err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetVariant(ctx context.Context, variantID int64) (variant model.Variant, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ` + variantColumns + ` FROM lab_variants WHERE variant_id = $1`

	slog.Debug("GetVariant start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetVariant failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetVariant completed", slog.String("rqID", rqID))
		}
	}()

	dbVariant := dbModel.Variant{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, variantID).StructScan(&dbVariant)
	if err != nil {
		return model.Variant{}, mapErr(err)
	}

	return dbConverter.ConvertVariant(dbVariant), nil
}

func (r *Postgres) ListVariants(ctx context.Context, labID int64, viewID *int64, includeDeleted bool) (variants []model.Variant, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ` + variantColumns + ` FROM lab_variants WHERE lab_id = $1 AND ($2::bigint IS NULL OR view_id = $2)`
	if !includeDeleted {
		query += ` AND visibility = 'active'`
	}
	query += ` ORDER BY variant_id`

	slog.Debug("ListVariants start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ListVariants failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListVariants completed", slog.String("rqID", rqID))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, labID, viewID)
	if err != nil {
		return nil, mapErr(err)
	}

	defer rows.Close()

	for rows.Next() {
		var dbVariant dbModel.Variant
		err = rows.StructScan(&dbVariant)
		if err != nil {
			return nil, err
		}
		variants = append(variants, dbConverter.ConvertVariant(dbVariant))
	}

	return variants, rows.Err()
}

// CountActiveScope counts active variants and how many of them carry a
// direction conflict. Runs inside the trade-sheet creation transaction to
// re-assert the zero-conflict invariant at commit time.
func (r *Postgres) CountActiveScope(ctx context.Context, labID int64, viewID *int64) (active, conflicts int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT count(*), count(*) FILTER (WHERE conflict_suggested IS NOT NULL)
		FROM lab_variants
		WHERE lab_id = $1 AND ($2::bigint IS NULL OR view_id = $2) AND visibility = 'active'
		`

	slog.Debug("CountActiveScope start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("CountActiveScope failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("CountActiveScope completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, labID, viewID).Scan(&active, &conflicts)
	if err != nil {
		return 0, 0, mapErr(err)
	}

	return active, conflicts, nil
}
