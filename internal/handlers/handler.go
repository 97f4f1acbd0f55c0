package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/ad/go-strategy-coach/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotAPI interface {
	services.BotAPI
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type BotHandler struct {
	bot          BotAPI
	errorManager *services.ErrorManager
	msgManager   *services.MessageManager
	users        *services.UserManager
	profiles     *services.ProfileService
	resolver     *services.ViewResolver
	strategies   *services.StrategyService
	views        *checklistViews
	logger       *zap.Logger
}

func NewBotHandler(
	b BotAPI,
	errorManager *services.ErrorManager,
	msgManager *services.MessageManager,
	users *services.UserManager,
	profiles *services.ProfileService,
	resolver *services.ViewResolver,
	strategies *services.StrategyService,
	progress checklist.RecordStore,
	reconcileTimeout time.Duration,
	logger *zap.Logger,
) *BotHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("bot")
	return &BotHandler{
		bot:          b,
		errorManager: errorManager,
		msgManager:   msgManager,
		users:        users,
		profiles:     profiles,
		resolver:     resolver,
		strategies:   strategies,
		views:        newChecklistViews(progress, msgManager, errorManager, reconcileTimeout, logger),
		logger:       logger,
	}
}

func (h *BotHandler) HandleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	defer h.recoverPanic(ctx, update)

	if update.Message != nil {
		h.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		h.errorManager.NotifyAdmin(ctx, r, update)
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}
	userID := models.TelegramUserID(msg.From.ID)
	command := strings.Fields(msg.Text)
	if len(command) > 0 {
		// "/focus@coach_bot" in groups
		name, _, _ := strings.Cut(command[0], "@")
		switch name {
		case "/start":
			h.handleStart(ctx, msg)
			return
		case "/profile":
			h.handleProfile(ctx, msg.Chat.ID, userID)
			return
		case "/focus":
			h.handleFocus(ctx, msg.Chat.ID, userID)
			return
		case "/history":
			h.handleHistory(ctx, msg.Chat.ID, userID)
			return
		case "/cancel":
			h.handleCancel(ctx, msg.Chat.ID, userID)
			return
		}
	}

	if msg.Text != "" && h.handleProfileText(ctx, msg.Chat.ID, userID, msg.Text) {
		return
	}

	h.send(ctx, msg.Chat.ID, helpText, nil)
}

const helpText = "Commands:\n/focus this week's plan and checklist\n/history past weeks\n/profile your business profile"

func (h *BotHandler) handleCallback(ctx context.Context, callback *tgmodels.CallbackQuery) {
	userID := models.TelegramUserID(callback.From.ID)
	chatID, messageID := callbackTarget(callback)

	switch {
	case strings.HasPrefix(callback.Data, prefixCheck):
		h.handleToggle(ctx, callback, chatID, messageID, userID)
	case strings.HasPrefix(callback.Data, prefixOpen):
		h.answer(ctx, callback.ID, "")
		h.openChecklist(ctx, chatID, userID, strings.TrimPrefix(callback.Data, prefixOpen))
	case strings.HasPrefix(callback.Data, prefixProfile):
		h.handleProfileChoice(ctx, callback, chatID, userID)
	case callback.Data == callbackEditProf:
		h.answer(ctx, callback.ID, "")
		h.startProfileFlow(ctx, chatID, userID, true)
	default:
		h.answer(ctx, callback.ID, "")
	}
}

func callbackTarget(callback *tgmodels.CallbackQuery) (chatID int64, messageID int) {
	if msg := callback.Message.Message; msg != nil {
		return msg.Chat.ID, msg.ID
	}
	if inaccessible := callback.Message.InaccessibleMessage; inaccessible != nil {
		return inaccessible.Chat.ID, inaccessible.MessageID
	}
	return callback.From.ID, 0
}

func (h *BotHandler) handleStart(ctx context.Context, msg *tgmodels.Message) {
	user, err := h.users.RegisterTelegramUser(ctx, msg.From)
	if err != nil {
		h.logger.Error("register user failed", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		h.send(ctx, msg.Chat.ID, "Something went wrong, please try /start again.", nil)
		return
	}

	view, err := h.resolver.Resolve(ctx, user.ID, false)
	if err != nil {
		h.logger.Error("resolve view failed", zap.String("user_id", user.ID), zap.Error(err))
		h.send(ctx, msg.Chat.ID, "Something went wrong, please try /start again.", nil)
		return
	}

	switch view {
	case services.ViewProfile:
		h.send(ctx, msg.Chat.ID, "👋 Welcome! Let's set up your business profile so your weekly plans fit your business.", nil)
		h.startProfileFlow(ctx, msg.Chat.ID, user.ID, false)
	case services.ViewDashboard:
		h.sendDashboard(ctx, msg.Chat.ID, user.ID)
	}
}

func (h *BotHandler) handleProfile(ctx context.Context, chatID int64, userID string) {
	profile, err := h.profiles.Get(ctx, userID)
	if err != nil {
		h.logger.Error("load profile failed", zap.String("user_id", userID), zap.Error(err))
		h.send(ctx, chatID, "Could not load your profile.", nil)
		return
	}
	if profile == nil {
		h.startProfileFlow(ctx, chatID, userID, false)
		return
	}
	h.send(ctx, chatID, services.FormatProfile(profile), editProfileKeyboard())
}

func (h *BotHandler) sendDashboard(ctx context.Context, chatID int64, userID string) {
	dash, err := h.strategies.Dashboard(ctx, userID)
	if err != nil {
		h.logger.Error("dashboard failed", zap.String("user_id", userID), zap.Error(err))
		h.send(ctx, chatID, "Could not load your dashboard.", nil)
		return
	}
	h.send(ctx, chatID, services.FormatDashboard(dash), nil)
}

func (h *BotHandler) handleFocus(ctx context.Context, chatID int64, userID string) {
	rec, err := h.strategies.CurrentRecommendation(ctx, userID)
	if err != nil {
		h.logger.Error("current recommendation failed", zap.String("user_id", userID), zap.Error(err))
		h.send(ctx, chatID, "Could not load this week's plan.", nil)
		return
	}
	if rec == nil {
		h.send(ctx, chatID, "Your first weekly plan is being prepared. Check back soon!", nil)
		return
	}
	h.showRecommendation(ctx, chatID, userID, rec)
}

func (h *BotHandler) handleHistory(ctx context.Context, chatID int64, userID string) {
	items, err := h.strategies.History(ctx, userID)
	if err != nil {
		h.logger.Error("history failed", zap.String("user_id", userID), zap.Error(err))
		h.send(ctx, chatID, "Could not load your history.", nil)
		return
	}
	h.send(ctx, chatID, services.FormatHistory(items), historyKeyboard(items))
}

func (h *BotHandler) openChecklist(ctx context.Context, chatID int64, userID, recID string) {
	rec, err := h.strategies.Recommendation(ctx, userID, recID)
	if errors.Is(err, services.ErrRecommendationNotFound) {
		h.send(ctx, chatID, "This plan is no longer available.", nil)
		return
	}
	if err != nil {
		h.logger.Error("load recommendation failed", zap.String("recommendation_id", recID), zap.Error(err))
		h.send(ctx, chatID, "Could not load this plan.", nil)
		return
	}
	h.showRecommendation(ctx, chatID, userID, rec)
}

func (h *BotHandler) showRecommendation(ctx context.Context, chatID int64, userID string, rec *models.WeeklyRecommendation) {
	h.send(ctx, chatID, services.FormatRecommendation(rec), nil)
	if _, err := h.views.Show(ctx, chatID, userID, rec); err != nil {
		h.logger.Warn("show checklist failed", zap.String("recommendation_id", rec.ID), zap.Error(err))
		if errors.Is(err, checklist.ErrLoadFailure) {
			h.send(ctx, chatID, "Could not load your progress. Try /focus again in a moment.", nil)
		}
	}
}

func (h *BotHandler) handleToggle(ctx context.Context, callback *tgmodels.CallbackQuery, chatID int64, messageID int, userID string) {
	recID, step, ok := parseCheckCallback(callback.Data)
	if !ok {
		h.answer(ctx, callback.ID, "")
		return
	}

	view := h.views.Get(chatID)
	if view == nil || view.rec.ID != recID || view.userID != userID {
		rec, err := h.strategies.Recommendation(ctx, userID, recID)
		if err != nil {
			h.answer(ctx, callback.ID, "This plan is no longer available.")
			return
		}
		view, err = h.views.Attach(ctx, chatID, userID, rec, messageID)
		if err != nil {
			h.answer(ctx, callback.ID, "Could not load your progress.")
			return
		}
	} else if messageID != 0 {
		view.setMessageID(messageID)
	}

	before := view.sync.Completed(step)
	if err := view.sync.Toggle(ctx, step); err != nil {
		if errors.Is(err, checklist.ErrInvalidStep) {
			h.answer(ctx, callback.ID, "This step no longer exists.")
			return
		}
		h.answer(ctx, callback.ID, "")
		return
	}

	if view.sync.Completed(step) == before {
		h.answer(ctx, callback.ID, "Couldn't save that, please try again.")
		return
	}
	h.answer(ctx, callback.ID, "")
}

func (h *BotHandler) send(ctx context.Context, chatID int64, text string, markup *tgmodels.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	_, _ = h.msgManager.SendWithRetry(ctx, params)
}

func (h *BotHandler) answer(ctx context.Context, callbackID, text string) {
	_, _ = h.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}
