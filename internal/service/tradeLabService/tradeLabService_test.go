package tradeLabService

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/KotFed0t/trade_lab_bot/config"
	"github.com/KotFed0t/trade_lab_bot/data/repository"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/dbModel"
	"github.com/KotFed0t/trade_lab_bot/internal/model/moexModel"
	"github.com/KotFed0t/trade_lab_bot/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	RegUserFn                     func(ctx context.Context, chatID int64) (int64, error)
	GetUserIDFn                   func(ctx context.Context, chatID int64) (int64, error)
	CreateLabFn                   func(ctx context.Context, name string, totalValue decimal.Decimal, userID int64) (int64, error)
	GetLabFn                      func(ctx context.Context, labID int64) (model.Lab, error)
	GetLabsForUserFn              func(ctx context.Context, userID int64, limit, offset int) ([]model.Lab, error)
	UpdateLabValueFn              func(ctx context.Context, labID int64, totalValue decimal.Decimal) error
	GetLabIDsWithActiveVariantsFn func(ctx context.Context) ([]int64, error)
	UpsertPositionFn              func(ctx context.Context, labID int64, ticker string, shares decimal.Decimal) error
	GetPositionFn                 func(ctx context.Context, labID int64, ticker string) (model.CurrentPosition, error)
	UpsertBenchmarkWeightFn       func(ctx context.Context, labID int64, ticker string, weight decimal.Decimal) error
	GetBenchmarkWeightFn          func(ctx context.Context, labID int64, ticker string) (*decimal.Decimal, error)
	InsertVariantFn               func(ctx context.Context, variant dbModel.Variant) (int64, error)
	UpdateVariantNormalizationFn  func(ctx context.Context, variant dbModel.Variant) error
	SoftDeleteVariantFn           func(ctx context.Context, variantID int64) error
	GetVariantFn                  func(ctx context.Context, variantID int64) (model.Variant, error)
	ListVariantsFn                func(ctx context.Context, labID int64, viewID *int64, includeDeleted bool) ([]model.Variant, error)
	CountActiveScopeFn            func(ctx context.Context, labID int64, viewID *int64) (int, int, error)
	InsertTradeSheetFn            func(ctx context.Context, labID int64, viewID *int64, name, description string) (int64, error)
	GetTradeSheetFn               func(ctx context.Context, sheetID int64) (model.TradeSheet, error)
	SetTradeSheetReportLinkFn     func(ctx context.Context, sheetID int64, link string) error
	InsertAuditEventFn            func(ctx context.Context, event model.AuditEvent) error
}

func (f *fakeRepo) RegUser(ctx context.Context, chatID int64) (int64, error) {
	return f.RegUserFn(ctx, chatID)
}

func (f *fakeRepo) GetUserID(ctx context.Context, chatID int64) (int64, error) {
	return f.GetUserIDFn(ctx, chatID)
}

func (f *fakeRepo) CreateLab(ctx context.Context, name string, totalValue decimal.Decimal, userID int64) (int64, error) {
	return f.CreateLabFn(ctx, name, totalValue, userID)
}

func (f *fakeRepo) GetLab(ctx context.Context, labID int64) (model.Lab, error) {
	return f.GetLabFn(ctx, labID)
}

func (f *fakeRepo) GetLabsForUser(ctx context.Context, userID int64, limit, offset int) ([]model.Lab, error) {
	return f.GetLabsForUserFn(ctx, userID, limit, offset)
}

func (f *fakeRepo) UpdateLabValue(ctx context.Context, labID int64, totalValue decimal.Decimal) error {
	return f.UpdateLabValueFn(ctx, labID, totalValue)
}

func (f *fakeRepo) GetLabIDsWithActiveVariants(ctx context.Context) ([]int64, error) {
	return f.GetLabIDsWithActiveVariantsFn(ctx)
}

func (f *fakeRepo) UpsertPosition(ctx context.Context, labID int64, ticker string, shares decimal.Decimal) error {
	return f.UpsertPositionFn(ctx, labID, ticker, shares)
}

func (f *fakeRepo) GetPosition(ctx context.Context, labID int64, ticker string) (model.CurrentPosition, error) {
	return f.GetPositionFn(ctx, labID, ticker)
}

func (f *fakeRepo) UpsertBenchmarkWeight(ctx context.Context, labID int64, ticker string, weight decimal.Decimal) error {
	return f.UpsertBenchmarkWeightFn(ctx, labID, ticker, weight)
}

func (f *fakeRepo) GetBenchmarkWeight(ctx context.Context, labID int64, ticker string) (*decimal.Decimal, error) {
	return f.GetBenchmarkWeightFn(ctx, labID, ticker)
}

func (f *fakeRepo) InsertVariant(ctx context.Context, variant dbModel.Variant) (int64, error) {
	return f.InsertVariantFn(ctx, variant)
}

func (f *fakeRepo) UpdateVariantNormalization(ctx context.Context, variant dbModel.Variant) error {
	return f.UpdateVariantNormalizationFn(ctx, variant)
}

func (f *fakeRepo) SoftDeleteVariant(ctx context.Context, variantID int64) error {
	return f.SoftDeleteVariantFn(ctx, variantID)
}

func (f *fakeRepo) GetVariant(ctx context.Context, variantID int64) (model.Variant, error) {
	return f.GetVariantFn(ctx, variantID)
}

func (f *fakeRepo) ListVariants(ctx context.Context, labID int64, viewID *int64, includeDeleted bool) ([]model.Variant, error) {
	return f.ListVariantsFn(ctx, labID, viewID, includeDeleted)
}

func (f *fakeRepo) CountActiveScope(ctx context.Context, labID int64, viewID *int64) (int, int, error) {
	return f.CountActiveScopeFn(ctx, labID, viewID)
}

func (f *fakeRepo) InsertTradeSheet(ctx context.Context, labID int64, viewID *int64, name, description string) (int64, error) {
	return f.InsertTradeSheetFn(ctx, labID, viewID, name, description)
}

func (f *fakeRepo) GetTradeSheet(ctx context.Context, sheetID int64) (model.TradeSheet, error) {
	return f.GetTradeSheetFn(ctx, sheetID)
}

func (f *fakeRepo) SetTradeSheetReportLink(ctx context.Context, sheetID int64, link string) error {
	return f.SetTradeSheetReportLinkFn(ctx, sheetID, link)
}

func (f *fakeRepo) InsertAuditEvent(ctx context.Context, event model.AuditEvent) error {
	if f.InsertAuditEventFn == nil {
		return nil
	}
	return f.InsertAuditEventFn(ctx, event)
}

func (f *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	return tFunc(ctx)
}

type fakeCache struct {
	GetAssetInfoFn  func(ctx context.Context, ticker string) (moexModel.AssetInfo, error)
	GetAssetsInfoFn func(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error)
}

func (f *fakeCache) GetAssetInfo(ctx context.Context, ticker string) (moexModel.AssetInfo, error) {
	if f.GetAssetInfoFn == nil {
		return moexModel.AssetInfo{}, errors.New("cache miss")
	}
	return f.GetAssetInfoFn(ctx, ticker)
}

func (f *fakeCache) GetAssetsInfo(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error) {
	if f.GetAssetsInfoFn == nil {
		return nil, errors.New("cache miss")
	}
	return f.GetAssetsInfoFn(ctx, tickers)
}

func (f *fakeCache) SetAssets(ctx context.Context, assets []moexModel.AssetInfo) error { return nil }

func (f *fakeCache) GetLabSummary(ctx context.Context, labID int64) (model.LabSummary, error) {
	return model.LabSummary{}, errors.New("cache miss")
}

func (f *fakeCache) SetLabSummary(ctx context.Context, labID int64, summary model.LabSummary) error {
	return nil
}

func (f *fakeCache) FlushLabCache(ctx context.Context, labID int64) error { return nil }

type fakeMoexApi struct {
	GetAssetInfoFn func(ctx context.Context, ticker string) (moexModel.AssetInfo, error)
}

func (f *fakeMoexApi) GetAssetInfo(ctx context.Context, ticker string) (moexModel.AssetInfo, error) {
	return f.GetAssetInfoFn(ctx, ticker)
}

func (f *fakeMoexApi) GetAssetsInfo(ctx context.Context) ([]moexModel.AssetInfo, error) {
	return nil, nil
}

func (f *fakeMoexApi) GetAssetsInfoByTickers(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error) {
	return nil, nil
}

type fakeReportGen struct{}

func (f *fakeReportGen) Generate(ctx context.Context, sheet model.TradeSheet, variants []model.Variant) ([]byte, string, error) {
	return []byte("report"), ".xlsx", nil
}

type fakeCloudStorage struct{}

func (f *fakeCloudStorage) UploadFile(ctx context.Context, reader io.Reader, filename string) (string, error) {
	return "https://example.com/report", nil
}

func (f *fakeCloudStorage) DeleteOldFiles(ctx context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		VariantsPerPage: 5,
		LabsPerPage:     5,
		InsertAttempts:  3,
		InsertBackoff:   time.Millisecond,
		Rounding: config.Rounding{
			MinLotBehavior: "round",
			RoundDirection: "nearest",
			ZeroThreshold:  "0",
		},
	}
}

func newTestService(repo *fakeRepo) *TradeLabService {
	return New(testConfig(), repo, &fakeCache{}, &fakeMoexApi{}, &fakeReportGen{}, &fakeCloudStorage{})
}

func TestCreateTradeSheet_NoActiveVariants(t *testing.T) {
	repo := &fakeRepo{
		CountActiveScopeFn: func(ctx context.Context, labID int64, viewID *int64) (int, int, error) {
			return 0, 0, nil
		},
		InsertTradeSheetFn: func(ctx context.Context, labID int64, viewID *int64, name, description string) (int64, error) {
			t.Fatal("InsertTradeSheet must not be called")
			return 0, nil
		},
	}

	s := newTestService(repo)

	_, err := s.CreateTradeSheet(context.Background(), 1, nil, "sheet", "")
	require.ErrorIs(t, err, service.ErrNoActiveVariants)
}

func TestCreateTradeSheet_BlockedByConflicts(t *testing.T) {
	auditCh := make(chan model.AuditEvent, 1)
	repo := &fakeRepo{
		CountActiveScopeFn: func(ctx context.Context, labID int64, viewID *int64) (int, int, error) {
			return 3, 2, nil
		},
		InsertTradeSheetFn: func(ctx context.Context, labID int64, viewID *int64, name, description string) (int64, error) {
			t.Fatal("InsertTradeSheet must not be called")
			return 0, nil
		},
		InsertAuditEventFn: func(ctx context.Context, event model.AuditEvent) error {
			auditCh <- event
			return nil
		},
	}

	s := newTestService(repo)

	_, err := s.CreateTradeSheet(context.Background(), 1, nil, "sheet", "")

	var blockedErr *service.BlockedCreationError
	require.ErrorAs(t, err, &blockedErr)
	assert.Equal(t, 2, blockedErr.Conflicts)

	select {
	case event := <-auditCh:
		assert.Equal(t, model.AuditTradeSheetBlocked, event.EventType)
		assert.Equal(t, int64(1), event.LabID)
	case <-time.After(time.Second):
		t.Fatal("blocked creation audit event was not emitted")
	}
}

func TestCreateTradeSheet_ConflictAppearsInsideTransaction(t *testing.T) {
	calls := 0
	repo := &fakeRepo{
		CountActiveScopeFn: func(ctx context.Context, labID int64, viewID *int64) (int, int, error) {
			calls++
			if calls == 1 {
				return 3, 0, nil
			}
			// конфликт появился между precheck и транзакцией
			return 3, 1, nil
		},
		InsertTradeSheetFn: func(ctx context.Context, labID int64, viewID *int64, name, description string) (int64, error) {
			t.Fatal("InsertTradeSheet must not be called")
			return 0, nil
		},
	}

	s := newTestService(repo)

	_, err := s.CreateTradeSheet(context.Background(), 1, nil, "sheet", "")

	var blockedErr *service.BlockedCreationError
	require.ErrorAs(t, err, &blockedErr)
	assert.Equal(t, 2, calls)
}

func TestCreateTradeSheet_Success(t *testing.T) {
	inserted := false
	repo := &fakeRepo{
		CountActiveScopeFn: func(ctx context.Context, labID int64, viewID *int64) (int, int, error) {
			return 3, 0, nil
		},
		InsertTradeSheetFn: func(ctx context.Context, labID int64, viewID *int64, name, description string) (int64, error) {
			inserted = true
			assert.Equal(t, "sheet", name)
			return 42, nil
		},
		GetTradeSheetFn: func(ctx context.Context, sheetID int64) (model.TradeSheet, error) {
			return model.TradeSheet{SheetID: sheetID, LabID: 1, Name: "sheet"}, nil
		},
		ListVariantsFn: func(ctx context.Context, labID int64, viewID *int64, includeDeleted bool) ([]model.Variant, error) {
			return nil, nil
		},
		SetTradeSheetReportLinkFn: func(ctx context.Context, sheetID int64, link string) error {
			return nil
		},
	}

	s := newTestService(repo)

	sheetID, err := s.CreateTradeSheet(context.Background(), 1, nil, "sheet", "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), sheetID)
	assert.True(t, inserted)
}

func TestInsertVariantWithRetry_TransientFailures(t *testing.T) {
	attempts := 0
	repo := &fakeRepo{
		InsertVariantFn: func(ctx context.Context, variant dbModel.Variant) (int64, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("connection reset")
			}
			return 7, nil
		},
	}

	s := newTestService(repo)

	variantID, err := s.insertVariantWithRetry(context.Background(), model.Variant{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), variantID)
	assert.Equal(t, 3, attempts)
}

func TestInsertVariantWithRetry_NoRetryOnDuplicate(t *testing.T) {
	attempts := 0
	repo := &fakeRepo{
		InsertVariantFn: func(ctx context.Context, variant dbModel.Variant) (int64, error) {
			attempts++
			return 0, repository.ErrAlreadyExists
		},
	}

	s := newTestService(repo)

	_, err := s.insertVariantWithRetry(context.Background(), model.Variant{})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)
	assert.Equal(t, 1, attempts)
}

func TestInsertVariantWithRetry_AllAttemptsFail(t *testing.T) {
	attempts := 0
	repo := &fakeRepo{
		InsertVariantFn: func(ctx context.Context, variant dbModel.Variant) (int64, error) {
			attempts++
			return 0, errors.New("connection reset")
		},
	}

	s := newTestService(repo)

	_, err := s.insertVariantWithRetry(context.Background(), model.Variant{})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestGetAssetInfo_FallbackToExchange(t *testing.T) {
	moexApi := &fakeMoexApi{
		GetAssetInfoFn: func(ctx context.Context, ticker string) (moexModel.AssetInfo, error) {
			return moexModel.AssetInfo{
				Ticker:  ticker,
				Status:  true,
				Lotsize: 10,
				Price:   decimal.NewFromInt(100),
			}, nil
		},
	}

	s := New(testConfig(), &fakeRepo{}, &fakeCache{}, moexApi, &fakeReportGen{}, &fakeCloudStorage{})

	assetInfo, err := s.GetAssetInfo(context.Background(), "SBER")
	require.NoError(t, err)
	assert.Equal(t, "SBER", assetInfo.Ticker)
}

func TestGetAssetInfo_InactiveAsset(t *testing.T) {
	moexApi := &fakeMoexApi{
		GetAssetInfoFn: func(ctx context.Context, ticker string) (moexModel.AssetInfo, error) {
			return moexModel.AssetInfo{Ticker: ticker, Status: false, Price: decimal.NewFromInt(100)}, nil
		},
	}

	s := New(testConfig(), &fakeRepo{}, &fakeCache{}, moexApi, &fakeReportGen{}, &fakeCloudStorage{})

	_, err := s.GetAssetInfo(context.Background(), "SBER")
	require.ErrorIs(t, err, service.ErrAssetNotActive)
}

func TestCreateTradeSheet_BelowLotWarningsDoNotBlock(t *testing.T) {
	reportLinkCh := make(chan string, 1)
	repo := &fakeRepo{
		CountActiveScopeFn: func(ctx context.Context, labID int64, viewID *int64) (int, int, error) {
			// предупреждения о неполном лоте не считаются конфликтами
			return 2, 0, nil
		},
		InsertTradeSheetFn: func(ctx context.Context, labID int64, viewID *int64, name, description string) (int64, error) {
			return 11, nil
		},
		GetTradeSheetFn: func(ctx context.Context, sheetID int64) (model.TradeSheet, error) {
			return model.TradeSheet{SheetID: sheetID, LabID: 1, Name: "sheet"}, nil
		},
		ListVariantsFn: func(ctx context.Context, labID int64, viewID *int64, includeDeleted bool) ([]model.Variant, error) {
			return []model.Variant{
				{VariantID: 1, Ticker: "SBER", Action: model.ActionBuy, IsValid: true, BelowLotWarning: true},
				{VariantID: 2, Ticker: "GAZP", Action: model.ActionSell, IsValid: true, BelowLotWarning: true},
			}, nil
		},
		SetTradeSheetReportLinkFn: func(ctx context.Context, sheetID int64, link string) error {
			reportLinkCh <- link
			return nil
		},
	}

	s := newTestService(repo)

	sheetID, err := s.CreateTradeSheet(context.Background(), 1, nil, "sheet", "")
	require.NoError(t, err)
	assert.Equal(t, int64(11), sheetID)

	select {
	case link := <-reportLinkCh:
		assert.NotEmpty(t, link)
	case <-time.After(time.Second):
		t.Fatal("report was not published")
	}
}

func TestRevalidateLab_MissingPriceInvalidatesOnlyItsVariant(t *testing.T) {
	updated := make(map[int64]dbModel.Variant)
	repo := &fakeRepo{
		GetLabFn: func(ctx context.Context, labID int64) (model.Lab, error) {
			return model.Lab{LabID: labID, Name: "основной", TotalValue: decimal.NewFromInt(1_000_000)}, nil
		},
		ListVariantsFn: func(ctx context.Context, labID int64, viewID *int64, includeDeleted bool) ([]model.Variant, error) {
			return []model.Variant{
				{VariantID: 1, LabID: labID, Ticker: "SBER", Action: model.ActionBuy, SizingInput: "-5"},
				{VariantID: 2, LabID: labID, Ticker: "GAZP", Action: model.ActionBuy, SizingInput: "5"},
			}, nil
		},
		GetPositionFn: func(ctx context.Context, labID int64, ticker string) (model.CurrentPosition, error) {
			return model.CurrentPosition{}, repository.ErrNotFound
		},
		GetBenchmarkWeightFn: func(ctx context.Context, labID int64, ticker string) (*decimal.Decimal, error) {
			return nil, nil
		},
		UpdateVariantNormalizationFn: func(ctx context.Context, variant dbModel.Variant) error {
			updated[variant.VariantID] = variant
			return nil
		},
	}

	cache := &fakeCache{
		GetAssetsInfoFn: func(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error) {
			// у GAZP нет котировки
			return map[string]moexModel.AssetInfo{
				"SBER": {Ticker: "SBER", Status: true, Lotsize: 10, Price: decimal.NewFromInt(100), UpdatedAt: time.Now()},
			}, nil
		},
	}

	s := New(testConfig(), repo, cache, &fakeMoexApi{}, &fakeReportGen{}, &fakeCloudStorage{})

	summary, err := s.RevalidateLab(context.Background(), 1, model.TriggerLoadRevalidation)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Conflicts)

	require.Contains(t, updated, int64(1))
	require.Contains(t, updated, int64(2))

	conflicted := updated[1]
	assert.True(t, conflicted.IsValid)
	assert.Equal(t, string(model.DirectionSell), conflicted.ConflictSuggested.String)
	assert.Equal(t, string(model.TriggerLoadRevalidation), conflicted.ConflictTrigger.String)

	failed := updated[2]
	assert.False(t, failed.IsValid)
	assert.Equal(t, "price unavailable", failed.ErrorText.String)
	assert.Equal(t, string(model.WeightTarget), failed.Framework)
	assert.False(t, failed.ConflictTrigger.Valid)
}
