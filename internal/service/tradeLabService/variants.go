package tradeLabService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/trade_lab_bot/config"
	"github.com/KotFed0t/trade_lab_bot/data/repository"
	"github.com/KotFed0t/trade_lab_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/moexModel"
	"github.com/KotFed0t/trade_lab_bot/internal/service"
	"github.com/KotFed0t/trade_lab_bot/internal/sizing"
	"github.com/KotFed0t/trade_lab_bot/utils"
	"github.com/shopspring/decimal"
)

func roundingConfig(cfg *config.Config, lotSize int) model.RoundingConfig {
	zeroThreshold, err := decimal.NewFromString(cfg.Rounding.ZeroThreshold)
	if err != nil {
		zeroThreshold = decimal.Zero
	}

	return model.RoundingConfig{
		LotSize:        decimal.NewFromInt(int64(lotSize)),
		MinLotBehavior: model.MinLotBehavior(cfg.Rounding.MinLotBehavior),
		RoundDirection: model.RoundDirection(cfg.Rounding.RoundDirection),
		ZeroThreshold:  zeroThreshold,
	}
}

// positionSnapshot enriches the stored share count with the weight implied by
// the current price and lab value. The snapshot is frozen onto the variant.
func positionSnapshot(position model.CurrentPosition, price, totalValue decimal.Decimal) model.CurrentPosition {
	if totalValue.IsPositive() && price.IsPositive() {
		position.WeightPct = position.Shares.Mul(price).Div(totalValue).Mul(decimal.NewFromInt(100))
	}
	return position
}

func (s *TradeLabService) getPositionOrEmpty(ctx context.Context, labID int64, ticker string) (model.CurrentPosition, error) {
	position, err := s.repo.GetPosition(ctx, labID, ticker)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// нет записи - значит позиции еще нет, начинаем с нуля
			return model.CurrentPosition{}, nil
		}
		return model.CurrentPosition{}, err
	}
	return position, nil
}

func (s *TradeLabService) activeWeightConfig(ctx context.Context, labID int64, ticker string) (*model.ActiveWeightConfig, error) {
	weight, err := s.repo.GetBenchmarkWeight(ctx, labID, ticker)
	if err != nil {
		return nil, err
	}
	if weight == nil {
		return nil, nil
	}
	return &model.ActiveWeightConfig{BenchmarkWeight: *weight}, nil
}

// CreateVariant parses and normalizes a new trade intent and persists it. A
// parse failure still creates the variant (invalid, with the error text), so
// the user can see and fix the input.
func (s *TradeLabService) CreateVariant(ctx context.Context, labID int64, ticker string, action model.Action, sizingInput string) (variant model.Variant, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.CreateVariant"

	slog.Debug("CreateVariant start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker), slog.String("sizingInput", sizingInput))
	defer func() {
		slog.Debug("CreateVariant finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	}()

	lab, err := s.repo.GetLab(ctx, labID)
	if err != nil {
		slog.Error("got error from repo.GetLab", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Variant{}, err
	}

	assetInfo, err := s.GetAssetInfo(ctx, ticker)
	if err != nil {
		return model.Variant{}, err
	}

	variant, err = s.buildVariant(ctx, lab, assetInfo, action, sizingInput, model.TriggerUserEdit)
	if err != nil {
		return model.Variant{}, err
	}

	variantID, err := s.insertVariantWithRetry(ctx, variant)
	if err != nil {
		slog.Error("got error from insertVariantWithRetry", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Variant{}, err
	}
	variant.VariantID = variantID

	if err := s.cache.FlushLabCache(ctx, labID); err != nil {
		slog.Error("got error from cache.FlushLabCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return variant, nil
}

// buildVariant runs the pure sizing core against fresh position, price and
// benchmark inputs and assembles the variant to persist.
func (s *TradeLabService) buildVariant(
	ctx context.Context,
	lab model.Lab,
	assetInfo moexModel.AssetInfo,
	action model.Action,
	sizingInput string,
	trigger model.ConflictTrigger,
) (model.Variant, error) {
	activeWeightCfg, err := s.activeWeightConfig(ctx, lab.LabID, assetInfo.Ticker)
	if err != nil {
		return model.Variant{}, err
	}

	position, err := s.getPositionOrEmpty(ctx, lab.LabID, assetInfo.Ticker)
	if err != nil {
		return model.Variant{}, err
	}

	price := assetPrice(assetInfo)
	position = positionSnapshot(position, price.Price, lab.TotalValue)

	parse := sizing.Parse(sizingInput, activeWeightCfg != nil)
	res := sizing.Normalize(sizing.NormalizationContext{
		Parse:          parse,
		Action:         action,
		Position:       position,
		Price:          price,
		PortfolioValue: lab.TotalValue,
		Rounding:       roundingConfig(s.cfg, assetInfo.Lotsize),
		ActiveWeight:   activeWeightCfg,
		Trigger:        trigger,
	})

	variant := model.Variant{
		LabID:             lab.LabID,
		Ticker:            assetInfo.Ticker,
		Action:            action,
		SizingInput:       sizingInput,
		Computed:          res.Computed,
		DirectionConflict: res.DirectionConflict,
		BelowLotWarning:   res.BelowLotWarning,
		IsValid:           res.IsValid,
		Position:          position,
		ActiveWeightCfg:   activeWeightCfg,
		Visibility:        model.VisibilityActive,
	}

	if spec, specErr := sizing.ToSpec(parse, sizingInput); specErr == nil {
		variant.SizingSpec = spec
	} else {
		variant.SizingSpec = model.SizingSpec{RawText: sizingInput}
	}

	if res.Err != nil {
		variant.ErrorText = res.Err.Error()
	}

	return variant, nil
}

// insertVariantWithRetry retries transient store failures with linear backoff.
// Logical failures (duplicate, access denied) are returned immediately.
func (s *TradeLabService) insertVariantWithRetry(ctx context.Context, variant model.Variant) (int64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.insertVariantWithRetry"

	var lastErr error
	for attempt := 1; attempt <= s.cfg.InsertAttempts; attempt++ {
		variantID, err := s.repo.InsertVariant(ctx, dbConverter.ConvertVariantToDB(variant))
		if err == nil {
			return variantID, nil
		}

		if errors.Is(err, repository.ErrAlreadyExists) || errors.Is(err, repository.ErrAccessDenied) {
			return 0, err
		}

		lastErr = err
		slog.Warn(
			"insert variant attempt failed",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)

		if attempt == s.cfg.InsertAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.cfg.InsertBackoff):
		}
	}

	return 0, lastErr
}

// UpdateVariantSizing re-normalizes a variant after the user edits its sizing
// text or action.
func (s *TradeLabService) UpdateVariantSizing(ctx context.Context, variantID int64, action model.Action, sizingInput string) (variant model.Variant, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.UpdateVariantSizing"

	slog.Debug("UpdateVariantSizing start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("variantID", variantID))
	defer func() {
		slog.Debug("UpdateVariantSizing finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("variantID", variantID))
	}()

	current, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		slog.Error("got error from repo.GetVariant", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Variant{}, err
	}

	lab, err := s.repo.GetLab(ctx, current.LabID)
	if err != nil {
		slog.Error("got error from repo.GetLab", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Variant{}, err
	}

	assetInfo, err := s.GetAssetInfo(ctx, current.Ticker)
	if err != nil {
		return model.Variant{}, err
	}

	variant, err = s.buildVariant(ctx, lab, assetInfo, action, sizingInput, model.TriggerUserEdit)
	if err != nil {
		return model.Variant{}, err
	}
	variant.VariantID = variantID
	variant.ViewID = current.ViewID

	if err := s.repo.UpdateVariantNormalization(ctx, dbConverter.ConvertVariantToDB(variant)); err != nil {
		slog.Error("got error from repo.UpdateVariantNormalization", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Variant{}, err
	}

	if err := s.cache.FlushLabCache(ctx, current.LabID); err != nil {
		slog.Error("got error from cache.FlushLabCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return variant, nil
}

// FlipVariantAction is the one-click conflict fix: it swaps the stated action
// to the conflict's suggested direction and re-normalizes.
func (s *TradeLabService) FlipVariantAction(ctx context.Context, variantID int64) (model.Variant, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.FlipVariantAction"

	current, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		slog.Error("got error from repo.GetVariant", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Variant{}, err
	}

	if current.DirectionConflict == nil {
		return current, nil
	}

	newAction := model.ActionBuy
	if current.DirectionConflict.SuggestedDirection == model.DirectionSell {
		// add/trim идиома сохраняется при перевороте
		if current.Action == model.ActionAdd {
			newAction = model.ActionTrim
		} else {
			newAction = model.ActionSell
		}
	}

	return s.UpdateVariantSizing(ctx, variantID, newAction, current.SizingInput)
}

func (s *TradeLabService) SoftDeleteVariant(ctx context.Context, variantID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.SoftDeleteVariant"

	slog.Debug("SoftDeleteVariant start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("variantID", variantID))
	defer func() {
		slog.Debug("SoftDeleteVariant finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("variantID", variantID))
	}()

	variant, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		slog.Error("got error from repo.GetVariant", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err := s.repo.SoftDeleteVariant(ctx, variantID); err != nil {
		slog.Error("got error from repo.SoftDeleteVariant", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	go s.emitAuditEvent(context.WithoutCancel(ctx), model.AuditEvent{
		EventType: model.AuditVariantTrashed,
		LabID:     variant.LabID,
		Details:   fmt.Sprintf("variant %d (%s %s %s) moved to trash", variantID, variant.Action, variant.Ticker, variant.SizingInput),
	})

	if err := s.cache.FlushLabCache(ctx, variant.LabID); err != nil {
		slog.Error("got error from cache.FlushLabCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return nil
}

// RevalidateLab re-normalizes every active variant of a lab against fresh
// prices and positions. One missing price invalidates only its variant.
func (s *TradeLabService) RevalidateLab(ctx context.Context, labID int64, trigger model.ConflictTrigger) (summary model.LabSummary, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.RevalidateLab"

	slog.Debug("RevalidateLab start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID))
	defer func() {
		slog.Debug("RevalidateLab finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID))
	}()

	lab, err := s.repo.GetLab(ctx, labID)
	if err != nil {
		slog.Error("got error from repo.GetLab", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LabSummary{}, err
	}

	variants, err := s.repo.ListVariants(ctx, labID, nil, false)
	if err != nil {
		slog.Error("got error from repo.ListVariants", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LabSummary{}, err
	}

	tickers := make([]string, 0, len(variants))
	seen := make(map[string]struct{}, len(variants))
	for _, variant := range variants {
		if _, ok := seen[variant.Ticker]; !ok {
			seen[variant.Ticker] = struct{}{}
			tickers = append(tickers, variant.Ticker)
		}
	}

	assetsInfo, err := s.cache.GetAssetsInfo(ctx, tickers)
	if err != nil {
		slog.Warn("can't get assets info from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

		assetsInfo, err = s.moexApi.GetAssetsInfoByTickers(ctx, tickers)
		if err != nil {
			slog.Error("can't get assets info from moexApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return model.LabSummary{}, err
		}
	}

	prices := make(map[string]model.AssetPrice, len(assetsInfo))
	for ticker, assetInfo := range assetsInfo {
		if assetInfo.Status && !assetInfo.Price.IsZero() {
			prices[ticker] = assetPrice(assetInfo)
		}
	}

	items := make([]sizing.BatchItem, 0, len(variants))
	for _, variant := range variants {
		activeWeightCfg, cfgErr := s.activeWeightConfig(ctx, labID, variant.Ticker)
		if cfgErr != nil {
			return model.LabSummary{}, cfgErr
		}

		position, posErr := s.getPositionOrEmpty(ctx, labID, variant.Ticker)
		if posErr != nil {
			return model.LabSummary{}, posErr
		}

		lotSize := 0
		if assetInfo, ok := assetsInfo[variant.Ticker]; ok {
			lotSize = assetInfo.Lotsize
		}

		if price, ok := prices[variant.Ticker]; ok {
			position = positionSnapshot(position, price.Price, lab.TotalValue)
		}

		items = append(items, sizing.BatchItem{
			ID:           variant.VariantID,
			Ticker:       variant.Ticker,
			Action:       variant.Action,
			SizingInput:  variant.SizingInput,
			Position:     position,
			Rounding:     roundingConfig(s.cfg, lotSize),
			ActiveWeight: activeWeightCfg,
		})
	}

	batchRes := sizing.NormalizeBatch(items, prices, lab.TotalValue, trigger)

	for i, variant := range variants {
		entry, ok := batchRes.Entries[variant.VariantID]
		if !ok {
			continue
		}

		updated := variant
		updated.SizingSpec = entry.Spec
		if updated.SizingSpec.RawText == "" {
			updated.SizingSpec.RawText = variant.SizingInput
		}
		updated.Computed = entry.Result.Computed
		updated.DirectionConflict = entry.Result.DirectionConflict
		updated.BelowLotWarning = entry.Result.BelowLotWarning
		updated.IsValid = entry.Result.IsValid
		updated.Position = items[i].Position
		updated.ActiveWeightCfg = items[i].ActiveWeight
		updated.ErrorText = ""
		if entry.Result.Err != nil {
			updated.ErrorText = entry.Result.Err.Error()
		}

		if err := s.repo.UpdateVariantNormalization(ctx, dbConverter.ConvertVariantToDB(updated)); err != nil {
			slog.Error("got error from repo.UpdateVariantNormalization", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("variantID", variant.VariantID), slog.String("err", err.Error()))
			return model.LabSummary{}, err
		}
	}

	summary = model.LabSummary{
		LabName:          lab.Name,
		TotalValue:       lab.TotalValue,
		Total:            batchRes.Summary.Total,
		Valid:            batchRes.Summary.Valid,
		Invalid:          batchRes.Summary.Invalid,
		Conflicts:        batchRes.Summary.Conflicts,
		BelowLotWarnings: batchRes.Summary.BelowLotWarnings,
		TotalNotional:    batchRes.Summary.TotalNotional,
	}

	go s.cache.SetLabSummary(context.WithoutCancel(ctx), labID, summary)

	return summary, nil
}

// GetLabPage returns a paginated view of a lab. On cache miss the whole lab is
// revalidated first, so the page always shows current prices and conflicts.
func (s *TradeLabService) GetLabPage(ctx context.Context, labID int64, page int) (labPage model.LabPage, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.GetLabPage"

	slog.Debug("GetLabPage start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID), slog.Int("page", page))
	defer func() {
		slog.Debug("GetLabPage finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID))
	}()

	summary, err := s.cache.GetLabSummary(ctx, labID)
	if err != nil {
		slog.Warn("can't get lab summary from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

		summary, err = s.RevalidateLab(ctx, labID, model.TriggerLoadRevalidation)
		if err != nil {
			return model.LabPage{}, err
		}
	}

	variants, err := s.repo.ListVariants(ctx, labID, nil, false)
	if err != nil {
		slog.Error("got error from repo.ListVariants", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.LabPage{}, err
	}

	perPage := s.cfg.VariantsPerPage
	offset := (page - 1) * perPage
	if page < 1 || (offset >= len(variants) && page != 1) {
		return model.LabPage{}, service.ErrNotFound
	}

	end := min(offset+perPage, len(variants))
	hasNext := end < len(variants)

	return model.LabPage{
		LabSummary:  summary,
		CurPage:     page,
		HasNextPage: hasNext,
		Variants:    variants[offset:end],
	}, nil
}
