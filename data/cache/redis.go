package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trade_lab_bot/config"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/moexModel"
	"github.com/KotFed0t/trade_lab_bot/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("not found in cache")

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func assetKey(ticker string) string {
	return "asset:" + ticker
}

func labSummaryKey(labID int64) string {
	return fmt.Sprintf("lab:%d:summary", labID)
}

func (r *RedisCache) SetAssets(ctx context.Context, assets []moexModel.AssetInfo) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetAssets start", slog.String("rqID", rqID))

	pipe := r.redis.Pipeline()
	for _, asset := range assets {
		assetJson, err := json.Marshal(asset)
		if err != nil {
			slog.Error(
				"can't marshall asset in SetAssets",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.Any("asset", asset),
			)
			return errors.New("can't marshall asset")
		}

		pipe.Set(ctx, assetKey(asset.Ticker), assetJson, r.cfg.Cache.AssetsExpiration)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetAssets completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetAssetInfo(ctx context.Context, ticker string) (moexModel.AssetInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetAssetInfo start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, assetKey(ticker)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return moexModel.AssetInfo{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", ticker))
		return moexModel.AssetInfo{}, err
	}

	assetInfo := moexModel.AssetInfo{}
	err = json.Unmarshal([]byte(res), &assetInfo)
	if err != nil {
		slog.Error(
			"can't unmarshall asset in GetAssetInfo",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return moexModel.AssetInfo{}, errors.New("can't unmarshall asset")
	}

	slog.Debug("GetAssetInfo finished", slog.String("rqID", rqID))

	return assetInfo, nil
}

// GetAssetsInfo errors when any requested ticker is missing, so callers fall
// back to the exchange for the whole set instead of mixing stale data.
func (r *RedisCache) GetAssetsInfo(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetAssetsInfo start", slog.String("rqID", rqID))

	if len(tickers) == 0 {
		return map[string]moexModel.AssetInfo{}, nil
	}

	keys := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		keys = append(keys, assetKey(ticker))
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	res := make(map[string]moexModel.AssetInfo, len(tickers))
	for i, value := range values {
		strValue, ok := value.(string)
		if !ok {
			return nil, ErrNotFound
		}

		assetInfo := moexModel.AssetInfo{}
		if err := json.Unmarshal([]byte(strValue), &assetInfo); err != nil {
			slog.Error("can't unmarshall asset in GetAssetsInfo", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return nil, errors.New("can't unmarshall asset")
		}
		res[tickers[i]] = assetInfo
	}

	slog.Debug("GetAssetsInfo finished", slog.String("rqID", rqID))

	return res, nil
}

func (r *RedisCache) GetLabSummary(ctx context.Context, labID int64) (model.LabSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetLabSummary start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, labSummaryKey(labID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.LabSummary{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.LabSummary{}, err
	}

	summary := model.LabSummary{}
	err = json.Unmarshal([]byte(res), &summary)
	if err != nil {
		slog.Error("can't unmarshall lab summary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.LabSummary{}, errors.New("can't unmarshall lab summary")
	}

	slog.Debug("GetLabSummary finished", slog.String("rqID", rqID))

	return summary, nil
}

func (r *RedisCache) SetLabSummary(ctx context.Context, labID int64, summary model.LabSummary) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetLabSummary start", slog.String("rqID", rqID))

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		slog.Error("can't marshall lab summary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return errors.New("can't marshall lab summary")
	}

	err = r.redis.Set(ctx, labSummaryKey(labID), summaryJson, r.cfg.Cache.LabSummaryExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetLabSummary completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) FlushLabCache(ctx context.Context, labID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("FlushLabCache start", slog.String("rqID", rqID))

	err := r.redis.Del(ctx, labSummaryKey(labID)).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("FlushLabCache completed", slog.String("rqID", rqID))

	return nil
}
