package tradeLabService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/service"
	"github.com/KotFed0t/trade_lab_bot/utils"
)

// CreateTradeSheet freezes the active scope of a lab into an immutable trade
// sheet. Creation is hard-blocked while any active variant in scope carries a
// direction conflict; the gate is checked again inside the transaction so a
// concurrent edit can't slip a conflict past the precheck.
func (s *TradeLabService) CreateTradeSheet(ctx context.Context, labID int64, viewID *int64, name, description string) (sheetID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.CreateTradeSheet"

	slog.Debug("CreateTradeSheet start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID), slog.String("name", name))
	defer func() {
		slog.Debug("CreateTradeSheet finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID))
	}()

	active, conflicts, err := s.repo.CountActiveScope(ctx, labID, viewID)
	if err != nil {
		slog.Error("got error from repo.CountActiveScope", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	if active == 0 {
		return 0, service.ErrNoActiveVariants
	}

	if conflicts > 0 {
		s.auditBlockedCreation(ctx, labID, conflicts)
		return 0, &service.BlockedCreationError{Conflicts: conflicts}
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		// повторная проверка внутри транзакции - между precheck и insert мог
		// появиться конфликт
		active, conflicts, err := s.repo.CountActiveScope(ctx, labID, viewID)
		if err != nil {
			return err
		}
		if active == 0 {
			return service.ErrNoActiveVariants
		}
		if conflicts > 0 {
			return &service.BlockedCreationError{Conflicts: conflicts}
		}

		sheetID, err = s.repo.InsertTradeSheet(ctx, labID, viewID, name, description)
		return err
	})
	if err != nil {
		// аудит пишем вне транзакции - она уже откатилась
		var blockedErr *service.BlockedCreationError
		if errors.As(err, &blockedErr) {
			s.auditBlockedCreation(ctx, labID, blockedErr.Conflicts)
		}
		slog.Error("trade sheet creation failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	go s.publishTradeSheetReport(context.WithoutCancel(ctx), sheetID, labID, viewID)

	go s.emitAuditEvent(context.WithoutCancel(ctx), model.AuditEvent{
		EventType: model.AuditTradeSheetCreated,
		LabID:     labID,
		Details:   fmt.Sprintf("trade sheet %d (%s) created with %d variants", sheetID, name, active),
	})

	return sheetID, nil
}

func (s *TradeLabService) GetTradeSheet(ctx context.Context, sheetID int64) (model.TradeSheet, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.GetTradeSheet"

	sheet, err := s.repo.GetTradeSheet(ctx, sheetID)
	if err != nil {
		slog.Error("got error from repo.GetTradeSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeSheet{}, err
	}

	return sheet, nil
}

// publishTradeSheetReport builds the xlsx report and uploads it to cloud
// storage. Runs after creation in a detached goroutine: a report failure
// never affects the already committed trade sheet, it is only logged.
func (s *TradeLabService) publishTradeSheetReport(ctx context.Context, sheetID, labID int64, viewID *int64) {
	op := "TradeLabService.publishTradeSheetReport"

	sheet, err := s.repo.GetTradeSheet(ctx, sheetID)
	if err != nil {
		slog.Error("got error from repo.GetTradeSheet", slog.String("op", op), slog.Int64("sheetID", sheetID), slog.String("err", err.Error()))
		return
	}

	variants, err := s.repo.ListVariants(ctx, labID, viewID, false)
	if err != nil {
		slog.Error("got error from repo.ListVariants", slog.String("op", op), slog.Int64("sheetID", sheetID), slog.String("err", err.Error()))
		return
	}

	fileBytes, ext, err := s.reportGen.Generate(ctx, sheet, variants)
	if err != nil {
		slog.Error("got error from reportGen.Generate", slog.String("op", op), slog.Int64("sheetID", sheetID), slog.String("err", err.Error()))
		return
	}

	filename := fmt.Sprintf("trade_sheet_%d_%s%s", sheetID, sheet.Name, ext)
	link, err := s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("op", op), slog.Int64("sheetID", sheetID), slog.String("err", err.Error()))
		return
	}

	if err := s.repo.SetTradeSheetReportLink(ctx, sheetID, link); err != nil {
		slog.Error("got error from repo.SetTradeSheetReportLink", slog.String("op", op), slog.Int64("sheetID", sheetID), slog.String("err", err.Error()))
	}
}

func (s *TradeLabService) auditBlockedCreation(ctx context.Context, labID int64, conflicts int) {
	go s.emitAuditEvent(context.WithoutCancel(ctx), model.AuditEvent{
		EventType: model.AuditTradeSheetBlocked,
		LabID:     labID,
		Details:   fmt.Sprintf("creation blocked by %d direction conflict(s)", conflicts),
	})
}

func (s *TradeLabService) emitAuditEvent(ctx context.Context, event model.AuditEvent) {
	if err := s.repo.InsertAuditEvent(ctx, event); err != nil {
		slog.Error("got error from repo.InsertAuditEvent", slog.String("op", "TradeLabService.emitAuditEvent"), slog.String("eventType", event.EventType), slog.String("err", err.Error()))
	}
}
