package moexApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/trade_lab_bot/config"
	"github.com/KotFed0t/trade_lab_bot/internal/externalApi"
	"github.com/KotFed0t/trade_lab_bot/internal/model/moexModel"
	"github.com/KotFed0t/trade_lab_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const securitiesURL = "/iss/engines/stock/markets/shares/boards/TQBR/securities.json"

type MoexApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *MoexApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MoexApi.Url)
	return &MoexApi{client: client}
}

func baseParams() map[string]string {
	return map[string]string{
		"iss.meta":           "off",
		"securities.columns": "SECID,SHORTNAME,LOTSIZE,CURRENCYID,STATUS",
		"marketdata.columns": "SECID,MARKETPRICE",
	}
}

func (a *MoexApi) GetAssetsInfo(ctx context.Context) ([]moexModel.AssetInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("MoexApi.GetAssetsInfo start", slog.String("rqID", rqID))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(baseParams()).
		Get(securitiesURL)

	if err != nil {
		slog.Error("error while dialing MoexApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	rawAssetsInfo := moexModel.RawAssetsInfo{}
	err = json.Unmarshal(resp.Body(), &rawAssetsInfo)
	if err != nil {
		slog.Error("can't unmarshall response into moexModel.RawAssetsInfo", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	res, err := a.parseRawAssetsInfoToSlice(rawAssetsInfo)
	if err != nil {
		slog.Error("can't parse raw data", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	slog.Debug("MoexApi.GetAssetsInfo completed", slog.String("rqID", rqID))

	return res, nil
}

func (a *MoexApi) GetAssetInfo(ctx context.Context, ticker string) (moexModel.AssetInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	params := baseParams()
	params["securities"] = ticker

	slog.Debug("MoexApi.GetAssetInfo start", slog.String("rqID", rqID), slog.String("ticker", ticker))

	resp, err := a.client.R().
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(securitiesURL)

	if err != nil {
		slog.Error("error while dialing MoexApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return moexModel.AssetInfo{}, err
	}

	rawAssetsInfo := moexModel.RawAssetsInfo{}
	err = json.Unmarshal(resp.Body(), &rawAssetsInfo)
	if err != nil {
		slog.Error("can't unmarshall response into moexModel.RawAssetsInfo", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return moexModel.AssetInfo{}, err
	}

	res, err := a.parseRawAssetsInfoSingle(rawAssetsInfo)
	if err != nil {
		if !errors.Is(err, externalApi.ErrNotFound) {
			slog.Error("can't parse raw data", slog.String("err", err.Error()), slog.String("rqID", rqID))
		}
		return moexModel.AssetInfo{}, err
	}

	slog.Debug("MoexApi.GetAssetInfo completed", slog.String("rqID", rqID))

	return res, nil
}

func (a *MoexApi) GetAssetsInfoByTickers(ctx context.Context, tickers []string) (map[string]moexModel.AssetInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	all, err := a.GetAssetsInfo(ctx)
	if err != nil {
		return nil, err
	}

	res := make(map[string]moexModel.AssetInfo, len(tickers))
	for _, asset := range all {
		res[asset.Ticker] = asset
	}

	for _, ticker := range tickers {
		if _, ok := res[ticker]; !ok {
			slog.Warn("ticker missing in moex response", slog.String("rqID", rqID), slog.String("ticker", ticker))
		}
	}

	return res, nil
}

func (a *MoexApi) parseRawAssetsInfoToSlice(rawAssetsInfo moexModel.RawAssetsInfo) ([]moexModel.AssetInfo, error) {
	res := make([]moexModel.AssetInfo, 0, len(rawAssetsInfo.Marketdata.Data))

	err := a.handleRawAssetsInfo(rawAssetsInfo, func(asset moexModel.AssetInfo) {
		res = append(res, asset)
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (a *MoexApi) parseRawAssetsInfoSingle(rawAssetsInfo moexModel.RawAssetsInfo) (moexModel.AssetInfo, error) {
	if len(rawAssetsInfo.Marketdata.Data) == 0 {
		return moexModel.AssetInfo{}, externalApi.ErrNotFound
	}

	res, err := a.parseRawAssetsInfoToSlice(rawAssetsInfo)
	if err != nil {
		return moexModel.AssetInfo{}, err
	}

	if len(res) != 1 {
		return moexModel.AssetInfo{}, errors.New("unexpected slice length, expected only 1 element")
	}

	return res[0], nil
}

func (a *MoexApi) handleRawAssetsInfo(rawAssetsInfo moexModel.RawAssetsInfo, handleFn func(asset moexModel.AssetInfo)) error {
	if len(rawAssetsInfo.Marketdata.Data) != len(rawAssetsInfo.Securities.Data) {
		return errors.New("lengths Marketdata != Securities")
	}

	for i := 0; i < len(rawAssetsInfo.Marketdata.Data); i++ {
		if len(rawAssetsInfo.Marketdata.Data[i]) != len(rawAssetsInfo.Marketdata.Columns) {
			return errors.New("invalid Marketdata")
		}

		if len(rawAssetsInfo.Securities.Data[i]) != len(rawAssetsInfo.Securities.Columns) {
			return errors.New("invalid Securities")
		}

		assetInfo := moexModel.AssetInfo{UpdatedAt: time.Now()}

		for j := 0; j < len(rawAssetsInfo.Marketdata.Columns); j++ {
			ok := true
			switch rawAssetsInfo.Marketdata.Columns[j] {
			case "SECID":
				assetInfo.Ticker, ok = rawAssetsInfo.Marketdata.Data[i][j].(string)
			case "MARKETPRICE":
				if rawAssetsInfo.Marketdata.Data[i][j] != nil {
					var price float64
					price, ok = rawAssetsInfo.Marketdata.Data[i][j].(float64)
					if ok {
						assetInfo.Price = decimal.NewFromFloat(price)
					}
				}
			default:
				return fmt.Errorf("unknown column %s", rawAssetsInfo.Marketdata.Columns[j])
			}

			if !ok {
				return fmt.Errorf("invalid type %s = %v", rawAssetsInfo.Marketdata.Columns[j], rawAssetsInfo.Marketdata.Data[i][j])
			}
		}

		for j := 0; j < len(rawAssetsInfo.Securities.Columns); j++ {
			ok := true
			switch rawAssetsInfo.Securities.Columns[j] {
			case "SECID":
				if rawAssetsInfo.Securities.Data[i][j] != assetInfo.Ticker {
					return fmt.Errorf("secID in securities and market data is not equal %s and %s", rawAssetsInfo.Securities.Data[i][j], assetInfo.Ticker)
				}
			case "SHORTNAME":
				assetInfo.Shortname, ok = rawAssetsInfo.Securities.Data[i][j].(string)
			case "LOTSIZE":
				var f float64
				f, ok = rawAssetsInfo.Securities.Data[i][j].(float64)
				if ok {
					assetInfo.Lotsize = int(f)
				}
			case "CURRENCYID":
				assetInfo.CurrencyID, ok = rawAssetsInfo.Securities.Data[i][j].(string)
				if ok && assetInfo.CurrencyID == "SUR" {
					assetInfo.CurrencyID = "RUB"
				}
			case "STATUS":
				var status string
				status, ok = rawAssetsInfo.Securities.Data[i][j].(string)
				if ok && status == "A" {
					assetInfo.Status = true
				}
			default:
				return fmt.Errorf("unknown column %s", rawAssetsInfo.Securities.Columns[j])
			}

			if !ok {
				return fmt.Errorf("invalid type %s = %v", rawAssetsInfo.Securities.Columns[j], rawAssetsInfo.Securities.Data[i][j])
			}
		}
		handleFn(assetInfo)
	}
	return nil
}
