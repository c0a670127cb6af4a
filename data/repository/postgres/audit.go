package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/utils"
)

func (r *Postgres) InsertAuditEvent(ctx context.Context, event model.AuditEvent) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO audit_events(event_type, lab_id, details) VALUES($1, $2, $3)`

	slog.Debug("InsertAuditEvent start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertAuditEvent failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertAuditEvent completed", slog.String("rqID", rqID))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, event.EventType, event.LabID, event.Details)
	return mapErr(err)
}
