package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/data/repository"
	"github.com/KotFed0t/trade_lab_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/dbModel"
	"github.com/KotFed0t/trade_lab_bot/utils"
	"github.com/shopspring/decimal"
)

func (r *Postgres) CreateLab(ctx context.Context, name string, totalValue decimal.Decimal, userID int64) (labID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO labs(name, total_value, user_id) VALUES($1, $2, $3) RETURNING lab_id`

	slog.Debug("CreateLab start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("CreateLab failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreateLab completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, name, totalValue, userID).Scan(&labID)
	if err != nil {
		return 0, mapErr(err)
	}

	return labID, nil
}

func (r *Postgres) GetLab(ctx context.Context, labID int64) (lab model.Lab, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT lab_id, name, total_value FROM labs WHERE lab_id = $1`

	slog.Debug("GetLab start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetLab failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLab completed", slog.String("rqID", rqID))
		}
	}()

	dbLab := dbModel.Lab{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, labID).StructScan(&dbLab)
	if err != nil {
		return model.Lab{}, mapErr(err)
	}

	return dbConverter.ConvertLab(dbLab), nil
}

func (r *Postgres) GetLabsForUser(ctx context.Context, userID int64, limit, offset int) (labs []model.Lab, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT lab_id, name, total_value
		FROM labs
		WHERE user_id = $1
		ORDER BY lab_id
		LIMIT $2 OFFSET $3
		`

	slog.Debug("GetLabsForUser start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetLabsForUser failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLabsForUser completed", slog.String("rqID", rqID))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}

	defer rows.Close()

	for rows.Next() {
		var dbLab dbModel.Lab
		err = rows.StructScan(&dbLab)
		if err != nil {
			return nil, err
		}
		labs = append(labs, dbConverter.ConvertLab(dbLab))
	}

	return labs, rows.Err()
}

func (r *Postgres) UpdateLabValue(ctx context.Context, labID int64, totalValue decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `UPDATE labs SET total_value = $1 WHERE lab_id = $2`

	slog.Debug("UpdateLabValue start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateLabValue failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateLabValue completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, totalValue, labID)
	if err != nil {
		return mapErr(err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetLabIDsWithActiveVariants(ctx context.Context) (labIDs []int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT DISTINCT lab_id FROM lab_variants WHERE visibility = 'active'`

	slog.Debug("GetLabIDsWithActiveVariants start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetLabIDsWithActiveVariants failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLabIDsWithActiveVariants completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &labIDs, query)
	if err != nil {
		return nil, mapErr(err)
	}

	return labIDs, nil
}

func (r *Postgres) UpsertPosition(ctx context.Context, labID int64, ticker string, shares decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO lab_positions(lab_id, ticker, shares) VALUES($1, $2, $3)
		ON CONFLICT (lab_id, ticker) DO UPDATE SET shares = EXCLUDED.shares
		`

	slog.Debug("UpsertPosition start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpsertPosition failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertPosition completed", slog.String("rqID", rqID))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, labID, ticker, shares)
	return mapErr(err)
}

func (r *Postgres) GetPosition(ctx context.Context, labID int64, ticker string) (position model.CurrentPosition, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT lab_id, ticker, shares, cost_basis FROM lab_positions WHERE lab_id = $1 AND ticker = $2`

	slog.Debug("GetPosition start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetPosition failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPosition completed", slog.String("rqID", rqID))
		}
	}()

	dbPosition := dbModel.Position{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, labID, ticker).StructScan(&dbPosition)
	if err != nil {
		return model.CurrentPosition{}, mapErr(err)
	}

	return dbConverter.ConvertPosition(dbPosition), nil
}

func (r *Postgres) UpsertBenchmarkWeight(ctx context.Context, labID int64, ticker string, weight decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO lab_benchmarks(lab_id, ticker, weight) VALUES($1, $2, $3)
		ON CONFLICT (lab_id, ticker) DO UPDATE SET weight = EXCLUDED.weight
		`

	slog.Debug("UpsertBenchmarkWeight start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpsertBenchmarkWeight failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertBenchmarkWeight completed", slog.String("rqID", rqID))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, labID, ticker, weight)
	return mapErr(err)
}

// GetBenchmarkWeight returns nil without error when no benchmark weight is
// configured for the asset: an absent benchmark is a normal state, not a
// lookup failure.
func (r *Postgres) GetBenchmarkWeight(ctx context.Context, labID int64, ticker string) (weight *decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT weight FROM lab_benchmarks WHERE lab_id = $1 AND ticker = $2`

	slog.Debug("GetBenchmarkWeight start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetBenchmarkWeight failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetBenchmarkWeight completed", slog.String("rqID", rqID))
		}
	}()

	var w decimal.Decimal
	err = r.txOrDb(ctx).QueryRowContext(ctx, query, labID, ticker).Scan(&w)
	if err != nil {
		if errors.Is(mapErr(err), repository.ErrNotFound) {
			err = nil
			return nil, nil
		}
		return nil, mapErr(err)
	}

	return &w, nil
}
