package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"unicode/utf8"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const maxAdminMessage = 4000

// ErrorManager logs failures and, when an admin chat is configured, forwards
// them there. A zero adminID disables forwarding.
type ErrorManager struct {
	bot     BotAPI
	adminID int64
	logger  *zap.Logger
}

func NewErrorManager(b BotAPI, adminID int64, logger *zap.Logger) *ErrorManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorManager{
		bot:     b,
		adminID: adminID,
		logger:  logger.Named("errors"),
	}
}

func (e *ErrorManager) NotifyAdmin(ctx context.Context, panicValue interface{}, update *tgmodels.Update) {
	userInfo := "unknown"
	if update != nil {
		if update.Message != nil && update.Message.From != nil {
			userInfo = formatTelegramUser(update.Message.From)
		} else if update.CallbackQuery != nil && update.CallbackQuery.From.ID != 0 {
			userInfo = formatTelegramUser(&update.CallbackQuery.From)
		}
	}

	e.logger.Error("panic in handler", zap.String("user", userInfo), zap.Any("panic", panicValue))

	e.send(ctx, fmt.Sprintf("🚨 Panic in handler\nUser: %s\nError: %v\n\nStack trace:\n%s",
		userInfo, panicValue, string(debug.Stack())))
}

func (e *ErrorManager) NotifyAdminWithCurl(ctx context.Context, chatID int64, request interface{}, err error) {
	e.logger.Warn("message delivery failed", zap.Int64("chat_id", chatID), zap.Error(err))

	e.send(ctx, fmt.Sprintf("❌ Failed to send message\nChat: [%d]\nError: %v\n\nCurl:\n%s",
		chatID, err, buildCurlCommand(request)))
}

// ReportReconciliationFailure is installed as the checklist failure handler.
// The checklist has already rolled back; this only records what happened.
func (e *ErrorManager) ReportReconciliationFailure(ctx context.Context, f checklist.Failure) {
	if errors.Is(f.Err, context.Canceled) {
		return
	}
	e.send(ctx, fmt.Sprintf("⚠️ Progress not saved, checklist rolled back\nUser: %s\nRecommendation: %s\nStep: %d\nError: %v",
		f.UserID, f.RecommendationID, f.Step+1, f.Err))
}

func (e *ErrorManager) send(ctx context.Context, msg string) {
	if e.adminID == 0 || e.bot == nil {
		return
	}
	if len(msg) > maxAdminMessage {
		msg = truncateUTF8(msg, maxAdminMessage) + "\n... (truncated)"
	}
	if _, err := e.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: e.adminID,
		Text:   msg,
	}); err != nil {
		e.logger.Warn("admin notification failed", zap.Error(err))
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune; Telegram
// rejects invalid UTF-8.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func buildCurlCommand(request interface{}) string {
	jsonData, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return fmt.Sprintf("# Failed to serialize request: %v", err)
	}

	return fmt.Sprintf("curl -X POST 'https://api.telegram.org/bot[BOT_TOKEN]/sendMessage' \\\n  -H 'Content-Type: application/json' \\\n  -d '%s'",
		string(jsonData))
}

func formatTelegramUser(u *tgmodels.User) string {
	info := fmt.Sprintf("[%d]", u.ID)
	if u.FirstName != "" {
		info = u.FirstName + " " + info
	}
	if u.Username != "" {
		info = info + " @" + u.Username
	}
	return info
}
