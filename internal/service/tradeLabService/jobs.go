package tradeLabService

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
)

// FillMoexCache refreshes the quote cache with the full exchange listing.
func (s *TradeLabService) FillMoexCache(ctx context.Context) error {
	op := "TradeLabService.FillMoexCache"

	assets, err := s.moexApi.GetAssetsInfo(ctx)
	if err != nil {
		slog.Error("got error from moexApi.GetAssetsInfo", slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err := s.cache.SetAssets(ctx, assets); err != nil {
		slog.Error("got error from cache.SetAssets", slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("moex cache filled", slog.String("op", op), slog.Int("assets", len(assets)))
	return nil
}

// RevalidateLabs re-normalizes every lab that has active variants, so
// conflicts surface from price drift even before anyone opens the lab.
func (s *TradeLabService) RevalidateLabs(ctx context.Context) error {
	op := "TradeLabService.RevalidateLabs"

	labIDs, err := s.repo.GetLabIDsWithActiveVariants(ctx)
	if err != nil {
		slog.Error("got error from repo.GetLabIDsWithActiveVariants", slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	var lastErr error
	for _, labID := range labIDs {
		if _, err := s.RevalidateLab(ctx, labID, model.TriggerLoadRevalidation); err != nil {
			slog.Error("lab revalidation failed", slog.String("op", op), slog.Int64("labID", labID), slog.String("err", err.Error()))
			lastErr = err
		}
	}

	slog.Debug("labs revalidated", slog.String("op", op), slog.Int("labs", len(labIDs)))
	return lastErr
}

// CleanupDriveFiles drops expired report files from cloud storage.
func (s *TradeLabService) CleanupDriveFiles(ctx context.Context) error {
	op := "TradeLabService.CleanupDriveFiles"

	if err := s.cloudStorage.DeleteOldFiles(ctx); err != nil {
		slog.Error("got error from cloudStorage.DeleteOldFiles", slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}
