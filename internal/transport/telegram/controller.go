package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/trade_lab_bot/data/session"
	"github.com/KotFed0t/trade_lab_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/service"
	"github.com/KotFed0t/trade_lab_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const internalErrMsg = "что-то пошло не так..."

type TradeLabService interface {
	RegUser(ctx context.Context, chatID int64) error
	CreateLab(ctx context.Context, labName string, totalValue decimal.Decimal, chatID int64) (labID int64, err error)
	GetLabsForUser(ctx context.Context, chatID int64, page int) ([]model.Lab, error)
	UpdateLabValue(ctx context.Context, labID int64, totalValue decimal.Decimal) error
	SetPosition(ctx context.Context, labID int64, ticker string, shares decimal.Decimal) error
	SetBenchmarkWeight(ctx context.Context, labID int64, ticker string, weight decimal.Decimal) error
	CreateVariant(ctx context.Context, labID int64, ticker string, action model.Action, sizingInput string) (model.Variant, error)
	FlipVariantAction(ctx context.Context, variantID int64) (model.Variant, error)
	SoftDeleteVariant(ctx context.Context, variantID int64) error
	GetLabPage(ctx context.Context, labID int64, page int) (model.LabPage, error)
	CreateTradeSheet(ctx context.Context, labID int64, viewID *int64, name, description string) (sheetID int64, err error)
	GetTradeSheet(ctx context.Context, sheetID int64) (model.TradeSheet, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type Controller struct {
	tradeLabService TradeLabService
	session         Session
}

func NewController(tradeLabService TradeLabService, session Session) *Controller {
	return &Controller{
		tradeLabService: tradeLabService,
		session:         session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	_ = ctrl.tradeLabService.RegUser(ctx, c.Chat().ID)
	return c.Reply("Привет! Здесь вы собираете заявки на сделки и проверяете их перед исполнением.\n/create_lab - новая лаборатория\n/labs - ваши лаборатории")
}

func (ctrl *Controller) InitLabCreation(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingLabName
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Введите название лаборатории:")
}

func (ctrl *Controller) ProcessLabName(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.LabName = strings.TrimSpace(c.Message().Text)
	chatSession.State = model.ExpectingLabValue
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Введите стоимость портфеля в рублях:")
}

func (ctrl *Controller) ProcessLabValue(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	totalValue, err := decimal.NewFromString(strings.TrimSpace(c.Message().Text))
	if err != nil || !totalValue.IsPositive() {
		return c.Send("Введите положительное число, например 2000000")
	}

	labID, err := ctrl.tradeLabService.CreateLab(ctx, chatSession.LabName, totalValue, c.Chat().ID)
	if err != nil {
		slog.Error("got error from tradeLabService.CreateLab", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.LabID = labID
	chatSession.LabName = ""
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, labID, 1)
}

func (ctrl *Controller) InitLabValueChange(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingNewLabValue
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Введите новую стоимость портфеля:")
}

func (ctrl *Controller) ProcessNewLabValue(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	totalValue, err := decimal.NewFromString(strings.TrimSpace(c.Message().Text))
	if err != nil || !totalValue.IsPositive() {
		return c.Send("Введите положительное число, например 2000000")
	}

	if err := ctrl.tradeLabService.UpdateLabValue(ctx, chatSession.LabID, totalValue); err != nil {
		slog.Error("got error from tradeLabService.UpdateLabValue", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, chatSession.LabID, 1)
}

func (ctrl *Controller) ShowLabs(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	labs, err := ctrl.tradeLabService.GetLabsForUser(ctx, c.Chat().ID, 1)
	if err != nil {
		slog.Error("got error from tradeLabService.GetLabsForUser", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.LabsListResponse(labs)
	return c.Send(text, markup)
}

func (ctrl *Controller) OpenLab(c tele.Context, labID int64) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.LabID = labID
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, labID, 1)
}

func (ctrl *Controller) ShowLabPage(c tele.Context, page int) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, chatSession.LabID, page)
}

func (ctrl *Controller) InitAddVariant(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingTicker
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Введите тикер:")
}

func (ctrl *Controller) ProcessTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.Ticker = strings.ToUpper(strings.TrimSpace(c.Message().Text))
	chatSession.State = model.ExpectingSizingInput
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Введите действие и размер, например:\n`купить 5` - до веса 5%\n`докупить +1.5` - плюс 1.5% веса\n`продать #200` - до 200 акций\n`купить @t0.5` - активный вес +0.5%")
}

func (ctrl *Controller) ProcessSizingInput(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	action, sizingInput, ok := parseActionInput(c.Message().Text)
	if !ok {
		return c.Send("Не понял действие. Начните с купить/продать/докупить/сократить")
	}

	variant, err := ctrl.tradeLabService.CreateVariant(ctx, chatSession.LabID, chatSession.Ticker, action, sizingInput)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("Не удалось найти указанный тикер")
		}
		if errors.Is(err, service.ErrAssetNotActive) {
			return c.Send("Бумага сейчас не торгуется")
		}
		slog.Error("got error from tradeLabService.CreateVariant", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	chatSession.Ticker = ""
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	if !variant.IsValid {
		_ = c.Send("❌ Заявка сохранена с ошибкой: " + variant.ErrorText)
	} else if variant.DirectionConflict != nil {
		_ = c.Send("⚠️ " + variant.DirectionConflict.Message)
	}

	return ctrl.sendLabPage(ctx, c, chatSession.LabID, 1)
}

func (ctrl *Controller) FlipVariantAction(c tele.Context, variantID int64) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if _, err := ctrl.tradeLabService.FlipVariantAction(ctx, variantID); err != nil {
		slog.Error("got error from tradeLabService.FlipVariantAction", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, chatSession.LabID, 1)
}

func (ctrl *Controller) DeleteVariant(c tele.Context, variantID int64) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	if err := ctrl.tradeLabService.SoftDeleteVariant(ctx, variantID); err != nil {
		slog.Error("got error from tradeLabService.SoftDeleteVariant", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, chatSession.LabID, 1)
}

func (ctrl *Controller) InitSetPosition(c tele.Context) error {
	return ctrl.initTickerValueInput(c, model.ExpectingPositionShares, "Введите тикер и количество акций, например `SBER 1000`:")
}

func (ctrl *Controller) ProcessPositionShares(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	ticker, value, ok := parseTickerValue(c.Message().Text)
	if !ok || value.IsNegative() {
		return c.Send("Формат: ТИКЕР КОЛИЧЕСТВО, например `SBER 1000`")
	}

	if err := ctrl.tradeLabService.SetPosition(ctx, chatSession.LabID, ticker, value); err != nil {
		slog.Error("got error from tradeLabService.SetPosition", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, chatSession.LabID, 1)
}

func (ctrl *Controller) InitSetBenchmark(c tele.Context) error {
	return ctrl.initTickerValueInput(c, model.ExpectingBenchmarkWeight, "Введите тикер и вес в индексе, например `SBER 4.5`:")
}

func (ctrl *Controller) ProcessBenchmarkWeight(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	ticker, value, ok := parseTickerValue(c.Message().Text)
	if !ok || value.IsNegative() {
		return c.Send("Формат: ТИКЕР ВЕС, например `SBER 4.5`")
	}

	if err := ctrl.tradeLabService.SetBenchmarkWeight(ctx, chatSession.LabID, ticker, value); err != nil {
		slog.Error("got error from tradeLabService.SetBenchmarkWeight", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return ctrl.sendLabPage(ctx, c, chatSession.LabID, 1)
}

func (ctrl *Controller) InitTradeSheetCreation(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.ExpectingSheetName
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send("Введите название листа сделок:")
}

func (ctrl *Controller) ProcessTradeSheetCreation(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = model.DefaultState
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	sheetID, err := ctrl.tradeLabService.CreateTradeSheet(ctx, chatSession.LabID, nil, strings.TrimSpace(c.Message().Text), "")
	if err != nil {
		var blockedErr *service.BlockedCreationError
		if errors.As(err, &blockedErr) {
			return c.Send(fmt.Sprintf("⚠️ Создание заблокировано: %d конфликт(ов) направления. Исправьте или удалите конфликтные заявки.", blockedErr.Conflicts))
		}
		if errors.Is(err, service.ErrNoActiveVariants) {
			return c.Send("В лаборатории нет активных заявок")
		}
		slog.Error("got error from tradeLabService.CreateTradeSheet", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	sheet, err := ctrl.tradeLabService.GetTradeSheet(ctx, sheetID)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.TradeSheetCreatedResponse(sheet))
}

func (ctrl *Controller) sendLabPage(ctx context.Context, c tele.Context, labID int64, page int) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	labPage, err := ctrl.tradeLabService.GetLabPage(ctx, labID, page)
	if err != nil {
		slog.Error("got error from tradeLabService.GetLabPage", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.LabDetailsResponse(labPage)
	return c.Send(text, markup, tele.ModeMarkdown)
}

func (ctrl *Controller) initTickerValueInput(c tele.Context, nextState model.SessionState, prompt string) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(internalErrMsg)
	}

	chatSession.State = nextState
	if err := ctrl.setSession(ctx, c, chatSession); err != nil {
		return c.Send(internalErrMsg)
	}

	return c.Send(prompt)
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) setSession(ctx context.Context, c tele.Context, chatSession model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	if err := ctrl.session.SetSession(ctx, strconv.FormatInt(c.Chat().ID, 10), chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}
	return nil
}

var actionWords = map[string]model.Action{
	"buy":       model.ActionBuy,
	"sell":      model.ActionSell,
	"add":       model.ActionAdd,
	"trim":      model.ActionTrim,
	"купить":    model.ActionBuy,
	"продать":   model.ActionSell,
	"докупить":  model.ActionAdd,
	"сократить": model.ActionTrim,
}

func parseActionInput(text string) (model.Action, string, bool) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) < 2 {
		return "", "", false
	}

	action, ok := actionWords[strings.ToLower(parts[0])]
	if !ok {
		return "", "", false
	}

	return action, strings.Join(parts[1:], " "), true
}

func parseTickerValue(text string) (string, decimal.Decimal, bool) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) != 2 {
		return "", decimal.Decimal{}, false
	}

	value, err := decimal.NewFromString(parts[1])
	if err != nil {
		return "", decimal.Decimal{}, false
	}

	return strings.ToUpper(parts[0]), value, true
}
