package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

var ErrMessageGone = errors.New("message to edit not found")

type MessageManager struct {
	bot      BotAPI
	errMgr   *ErrorManager
	maxRetry int
}

func NewMessageManager(b BotAPI, errMgr *ErrorManager) *MessageManager {
	return &MessageManager{
		bot:      b,
		errMgr:   errMgr,
		maxRetry: 2,
	}
}

func (m *MessageManager) SendWithRetry(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		msg, err := m.bot.SendMessage(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	chatID, _ := params.ChatID.(int64)
	m.errMgr.NotifyAdminWithCurl(ctx, chatID, params, lastErr)
	return nil, lastErr
}

// EditWithRetry edits a message in place. An unchanged message counts as
// success; a deleted one returns ErrMessageGone so the caller can resend.
func (m *MessageManager) EditWithRetry(ctx context.Context, params *bot.EditMessageTextParams) error {
	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		_, err := m.bot.EditMessageText(ctx, params)
		switch {
		case err == nil, isNotModifiedError(err):
			return nil
		case isMessageNotFoundError(err):
			return ErrMessageGone
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (m *MessageManager) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := m.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	return err
}

func isNotModifiedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func isMessageNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "message to edit not found") ||
		strings.Contains(errStr, "MESSAGE_ID_INVALID")
}
