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

func (r *Postgres) InsertTradeSheet(ctx context.Context, labID int64, viewID *int64, name, description string) (sheetID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO trade_sheets(lab_id, view_id, name, description) VALUES($1, $2, $3, $4) RETURNING sheet_id`

	slog.Debug("InsertTradeSheet start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertTradeSheet failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTradeSheet completed", slog.String("rqID", rqID))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, labID, viewID, name, description).Scan(&sheetID)
	if err != nil {
		return 0, mapErr(err)
	}

	return sheetID, nil
}

func (r *Postgres) GetTradeSheet(ctx context.Context, sheetID int64) (sheet model.TradeSheet, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT sheet_id, lab_id, view_id, name, description, report_link, dt_create FROM trade_sheets WHERE sheet_id = $1`

	slog.Debug("GetTradeSheet start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetTradeSheet failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTradeSheet completed", slog.String("rqID", rqID))
		}
	}()

	dbSheet := dbModel.TradeSheet{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, sheetID).StructScan(&dbSheet)
	if err != nil {
		return model.TradeSheet{}, mapErr(err)
	}

	return dbConverter.ConvertTradeSheet(dbSheet), nil
}

func (r *Postgres) SetTradeSheetReportLink(ctx context.Context, sheetID int64, link string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `UPDATE trade_sheets SET report_link = $1 WHERE sheet_id = $2`

	slog.Debug("SetTradeSheetReportLink start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("SetTradeSheetReportLink failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("SetTradeSheetReportLink completed", slog.String("rqID", rqID))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, link, sheetID)
	if err != nil {
		return mapErr(err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
