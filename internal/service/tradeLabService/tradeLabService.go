package tradeLabService

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/config"
	"github.com/KotFed0t/trade_lab_bot/data/repository"
	"github.com/KotFed0t/trade_lab_bot/internal/externalApi"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/dbModel"
	"github.com/KotFed0t/trade_lab_bot/internal/model/moexModel"
	"github.com/KotFed0t/trade_lab_bot/internal/service"
	"github.com/KotFed0t/trade_lab_bot/utils"
	"github.com/shopspring/decimal"
)

type MoexApi interface {
	GetAssetInfo(ctx context.Context, ticker string) (moexModel.AssetInfo, error)
	GetAssetsInfo(ctx context.Context) ([]moexModel.AssetInfo, error)
	GetAssetsInfoByTickers(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error)
}

type Cache interface {
	GetAssetInfo(ctx context.Context, ticker string) (moexModel.AssetInfo, error)
	GetAssetsInfo(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error)
	SetAssets(ctx context.Context, assets []moexModel.AssetInfo) error
	GetLabSummary(ctx context.Context, labID int64) (model.LabSummary, error)
	SetLabSummary(ctx context.Context, labID int64, summary model.LabSummary) error
	FlushLabCache(ctx context.Context, labID int64) error
}

type Repository interface {
	RegUser(ctx context.Context, chatID int64) (userID int64, err error)
	GetUserID(ctx context.Context, chatID int64) (userID int64, err error)
	CreateLab(ctx context.Context, name string, totalValue decimal.Decimal, userID int64) (labID int64, err error)
	GetLab(ctx context.Context, labID int64) (model.Lab, error)
	GetLabsForUser(ctx context.Context, userID int64, limit, offset int) ([]model.Lab, error)
	UpdateLabValue(ctx context.Context, labID int64, totalValue decimal.Decimal) error
	GetLabIDsWithActiveVariants(ctx context.Context) ([]int64, error)
	UpsertPosition(ctx context.Context, labID int64, ticker string, shares decimal.Decimal) error
	GetPosition(ctx context.Context, labID int64, ticker string) (model.CurrentPosition, error)
	UpsertBenchmarkWeight(ctx context.Context, labID int64, ticker string, weight decimal.Decimal) error
	GetBenchmarkWeight(ctx context.Context, labID int64, ticker string) (*decimal.Decimal, error)
	InsertVariant(ctx context.Context, variant dbModel.Variant) (variantID int64, err error)
	UpdateVariantNormalization(ctx context.Context, variant dbModel.Variant) error
	SoftDeleteVariant(ctx context.Context, variantID int64) error
	GetVariant(ctx context.Context, variantID int64) (model.Variant, error)
	ListVariants(ctx context.Context, labID int64, viewID *int64, includeDeleted bool) ([]model.Variant, error)
	CountActiveScope(ctx context.Context, labID int64, viewID *int64) (active, conflicts int, err error)
	InsertTradeSheet(ctx context.Context, labID int64, viewID *int64, name, description string) (sheetID int64, err error)
	GetTradeSheet(ctx context.Context, sheetID int64) (model.TradeSheet, error)
	SetTradeSheetReportLink(ctx context.Context, sheetID int64, link string) error
	InsertAuditEvent(ctx context.Context, event model.AuditEvent) error
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, sheet model.TradeSheet, variants []model.Variant) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type TradeLabService struct {
	cfg          *config.Config
	repo         Repository
	cache        Cache
	moexApi      MoexApi
	reportGen    ReportGenerator
	cloudStorage CloudStorage
}

func New(cfg *config.Config, repo Repository, cache Cache, moexApi MoexApi, reportGen ReportGenerator, cloudStorage CloudStorage) *TradeLabService {
	return &TradeLabService{
		cfg:          cfg,
		repo:         repo,
		cache:        cache,
		moexApi:      moexApi,
		reportGen:    reportGen,
		cloudStorage: cloudStorage,
	}
}

func (s *TradeLabService) RegUser(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.RegUser"

	slog.Debug("RegUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	_, err := s.repo.RegUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		slog.Error("got error from repo.RegUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *TradeLabService) CreateLab(ctx context.Context, labName string, totalValue decimal.Decimal, chatID int64) (labID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.CreateLab"

	slog.Debug("CreateLab start", slog.String("rqID", rqID), slog.String("op", op), slog.String("labName", labName), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("CreateLab finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("labName", labName), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return 0, err
	}

	labID, err = s.repo.CreateLab(ctx, labName, totalValue, userID)
	if err != nil {
		slog.Error("got error from repo.CreateLab", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return 0, err
	}

	return labID, nil
}

func (s *TradeLabService) GetLabsForUser(ctx context.Context, chatID int64, page int) ([]model.Lab, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.GetLabsForUser"

	slog.Debug("GetLabsForUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("GetLabsForUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	userID, err := s.repo.GetUserID(ctx, chatID)
	if err != nil {
		slog.Error("got error from repo.GetUserID", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	offset := (page - 1) * s.cfg.LabsPerPage
	labs, err := s.repo.GetLabsForUser(ctx, userID, s.cfg.LabsPerPage, offset)
	if err != nil {
		slog.Error("got error from repo.GetLabsForUser", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	return labs, nil
}

func (s *TradeLabService) UpdateLabValue(ctx context.Context, labID int64, totalValue decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.UpdateLabValue"

	slog.Debug("UpdateLabValue start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID))
	defer func() {
		slog.Debug("UpdateLabValue finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("labID", labID))
	}()

	err := s.repo.UpdateLabValue(ctx, labID, totalValue)
	if err != nil {
		slog.Error("got error from repo.UpdateLabValue", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	// вес каждой позиции зависит от стоимости портфеля - сбрасываем кэш
	if err := s.cache.FlushLabCache(ctx, labID); err != nil {
		slog.Error("got error from cache.FlushLabCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return nil
}

func (s *TradeLabService) SetPosition(ctx context.Context, labID int64, ticker string, shares decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.SetPosition"

	slog.Debug("SetPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	defer func() {
		slog.Debug("SetPosition finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	}()

	err := s.repo.UpsertPosition(ctx, labID, ticker, shares)
	if err != nil {
		slog.Error("got error from repo.UpsertPosition", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err := s.cache.FlushLabCache(ctx, labID); err != nil {
		slog.Error("got error from cache.FlushLabCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return nil
}

func (s *TradeLabService) SetBenchmarkWeight(ctx context.Context, labID int64, ticker string, weight decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.SetBenchmarkWeight"

	slog.Debug("SetBenchmarkWeight start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	defer func() {
		slog.Debug("SetBenchmarkWeight finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	}()

	err := s.repo.UpsertBenchmarkWeight(ctx, labID, ticker, weight)
	if err != nil {
		slog.Error("got error from repo.UpsertBenchmarkWeight", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// GetAssetInfo serves quotes from cache when possible and falls back to the
// exchange. Inactive assets and assets without a price are rejected.
func (s *TradeLabService) GetAssetInfo(ctx context.Context, ticker string) (assetInfo moexModel.AssetInfo, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradeLabService.GetAssetInfo"

	slog.Debug("GetAssetInfo start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	defer func() {
		slog.Debug("GetAssetInfo finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	}()

	assetInfo, err = s.cache.GetAssetInfo(ctx, ticker)
	if err != nil {
		slog.Warn("can't get asset info from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

		assetInfo, err = s.moexApi.GetAssetInfo(ctx, ticker)
		if err != nil {
			if errors.Is(err, externalApi.ErrNotFound) {
				slog.Warn("asset not found in moexApi", slog.String("rqID", rqID), slog.String("op", op))
				return moexModel.AssetInfo{}, service.ErrNotFound
			}
			slog.Error("can't get asset info from moexApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return moexModel.AssetInfo{}, err
		}
	}

	if !assetInfo.Status || assetInfo.Price.IsZero() {
		return moexModel.AssetInfo{}, service.ErrAssetNotActive
	}

	return assetInfo, nil
}

func assetPrice(assetInfo moexModel.AssetInfo) model.AssetPrice {
	return model.AssetPrice{
		Price:     assetInfo.Price,
		Timestamp: assetInfo.UpdatedAt,
		Source:    "moex",
	}
}
