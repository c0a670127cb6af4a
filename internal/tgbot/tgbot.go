package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/trade_lab_bot/config"
	"github.com/KotFed0t/trade_lab_bot/data/session"
	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/KotFed0t/trade_lab_bot/internal/model/tg/tgCallback.go"
	"github.com/KotFed0t/trade_lab_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/trade_lab_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/trade_lab_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		// получение сесии и выбор метода контроллера на основе шага пользователя
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)
		chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("что-то пошло не так...")
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingLabName:
			return b.ctrl.ProcessLabName(c)
		case model.ExpectingLabValue:
			return b.ctrl.ProcessLabValue(c)
		case model.ExpectingNewLabValue:
			return b.ctrl.ProcessNewLabValue(c)
		case model.ExpectingTicker:
			return b.ctrl.ProcessTicker(c)
		case model.ExpectingSizingInput:
			return b.ctrl.ProcessSizingInput(c)
		case model.ExpectingPositionShares:
			return b.ctrl.ProcessPositionShares(c)
		case model.ExpectingBenchmarkWeight:
			return b.ctrl.ProcessBenchmarkWeight(c)
		case model.ExpectingSheetName:
			return b.ctrl.ProcessTradeSheetCreation(c)
		default:
			return c.Send("сначала введите одну из команд")
		}
	})

	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		data := strings.TrimPrefix(c.Callback().Data, "\f")

		switch {
		case data == tgCallback.AddVariant:
			return b.ctrl.InitAddVariant(c)
		case data == tgCallback.CreateTradeSheet:
			return b.ctrl.InitTradeSheetCreation(c)
		case data == tgCallback.SetPosition:
			return b.ctrl.InitSetPosition(c)
		case data == tgCallback.SetBenchmark:
			return b.ctrl.InitSetBenchmark(c)
		case data == tgCallback.ChangeLabValue:
			return b.ctrl.InitLabValueChange(c)
		case strings.HasPrefix(data, tgCallback.OpenLabPrefix):
			labID, err := strconv.ParseInt(strings.TrimPrefix(data, tgCallback.OpenLabPrefix), 10, 64)
			if err != nil {
				return nil
			}
			return b.ctrl.OpenLab(c, labID)
		case strings.HasPrefix(data, tgCallback.FlipActionPrefix):
			variantID, err := strconv.ParseInt(strings.TrimPrefix(data, tgCallback.FlipActionPrefix), 10, 64)
			if err != nil {
				return nil
			}
			return b.ctrl.FlipVariantAction(c, variantID)
		case strings.HasPrefix(data, tgCallback.DeleteVariantPrefix):
			variantID, err := strconv.ParseInt(strings.TrimPrefix(data, tgCallback.DeleteVariantPrefix), 10, 64)
			if err != nil {
				return nil
			}
			return b.ctrl.DeleteVariant(c, variantID)
		case strings.HasPrefix(data, tgCallback.PrevPagePrefix):
			page, err := strconv.Atoi(strings.TrimPrefix(data, tgCallback.PrevPagePrefix))
			if err != nil {
				return nil
			}
			return b.ctrl.ShowLabPage(c, page)
		case strings.HasPrefix(data, tgCallback.NextPagePrefix):
			page, err := strconv.Atoi(strings.TrimPrefix(data, tgCallback.NextPagePrefix))
			if err != nil {
				return nil
			}
			return b.ctrl.ShowLabPage(c, page)
		default:
			slog.Error("unexpected callback data", slog.String("rqID", rqID), slog.String("data", data))
			return nil
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/create_lab", b.ctrl.InitLabCreation)
	b.bot.Handle("/labs", b.ctrl.ShowLabs)
}
