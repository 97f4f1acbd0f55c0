package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/ad/go-strategy-coach/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const renderTimeout = 10 * time.Second

// checklistView is one rendered checklist message backed by its own Sync.
type checklistView struct {
	chatID      int64
	userID      string
	rec         *models.WeeklyRecommendation
	sync        *checklist.Sync
	unsubscribe func()

	mu        sync.Mutex
	messageID int
}

func (v *checklistView) MessageID() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.messageID
}

func (v *checklistView) setMessageID(id int) {
	v.mu.Lock()
	v.messageID = id
	v.mu.Unlock()
}

// checklistViews keeps at most one live checklist per chat.
type checklistViews struct {
	store      checklist.RecordStore
	msgManager *services.MessageManager
	errMgr     *services.ErrorManager
	timeout    time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	views map[int64]*checklistView
}

func newChecklistViews(store checklist.RecordStore, msgManager *services.MessageManager, errMgr *services.ErrorManager, timeout time.Duration, logger *zap.Logger) *checklistViews {
	return &checklistViews{
		store:      store,
		msgManager: msgManager,
		errMgr:     errMgr,
		timeout:    timeout,
		logger:     logger,
		views:      make(map[int64]*checklistView),
	}
}

// Show sends a new checklist message for rec and makes it the chat's live view.
func (c *checklistViews) Show(ctx context.Context, chatID int64, userID string, rec *models.WeeklyRecommendation) (*checklistView, error) {
	view, err := c.newView(ctx, chatID, userID, rec)
	if err != nil {
		return nil, err
	}

	text, markup := renderChecklist(rec, view.sync.Snapshot())
	msg, err := c.msgManager.SendWithRetry(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		return nil, err
	}
	view.setMessageID(msg.ID)
	c.activate(view)
	return view, nil
}

// Attach returns the chat's live view for rec, rebuilding it around an
// existing message when the bot restarted or another plan was opened since.
func (c *checklistViews) Attach(ctx context.Context, chatID int64, userID string, rec *models.WeeklyRecommendation, messageID int) (*checklistView, error) {
	c.mu.Lock()
	view, ok := c.views[chatID]
	c.mu.Unlock()
	if ok && view.rec.ID == rec.ID && view.userID == userID {
		if messageID != 0 {
			view.setMessageID(messageID)
		}
		return view, nil
	}

	view, err := c.newView(ctx, chatID, userID, rec)
	if err != nil {
		return nil, err
	}
	view.setMessageID(messageID)
	c.activate(view)
	return view, nil
}

func (c *checklistViews) newView(ctx context.Context, chatID int64, userID string, rec *models.WeeklyRecommendation) (*checklistView, error) {
	s := checklist.New(c.store, rec.Steps,
		checklist.WithLogger(c.logger),
		checklist.WithReconcileTimeout(c.timeout),
		checklist.WithFailureHandler(func(f checklist.Failure) {
			ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
			defer cancel()
			c.errMgr.ReportReconciliationFailure(ctx, f)
		}),
	)
	if _, err := s.Load(ctx, userID, rec.ID); err != nil {
		return nil, err
	}

	view := &checklistView{chatID: chatID, userID: userID, rec: rec, sync: s}
	view.unsubscribe = s.Subscribe(func(snap checklist.Snapshot) {
		c.render(view, snap)
	})
	return view, nil
}

func (c *checklistViews) activate(view *checklistView) {
	c.mu.Lock()
	old := c.views[view.chatID]
	c.views[view.chatID] = view
	c.mu.Unlock()

	if old != nil && old != view {
		old.unsubscribe()
	}
}

func (c *checklistViews) Get(chatID int64) *checklistView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.views[chatID]
}

// Drop forgets the chat's view, e.g. when the user is switched.
func (c *checklistViews) Drop(chatID int64) {
	c.mu.Lock()
	view := c.views[chatID]
	delete(c.views, chatID)
	c.mu.Unlock()
	if view != nil {
		view.unsubscribe()
	}
}

func (c *checklistViews) render(view *checklistView, snap checklist.Snapshot) {
	messageID := view.MessageID()
	if messageID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	text, markup := renderChecklist(view.rec, snap)
	err := c.msgManager.EditWithRetry(ctx, &bot.EditMessageTextParams{
		ChatID:      view.chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if errors.Is(err, services.ErrMessageGone) {
		msg, sendErr := c.msgManager.SendWithRetry(ctx, &bot.SendMessageParams{
			ChatID:      view.chatID,
			Text:        text,
			ParseMode:   tgmodels.ParseModeHTML,
			ReplyMarkup: markup,
		})
		if sendErr == nil {
			view.setMessageID(msg.ID)
		}
		return
	}
	if err != nil {
		c.logger.Warn("checklist render failed", zap.Int64("chat_id", view.chatID), zap.Error(err))
	}
}

func renderChecklist(rec *models.WeeklyRecommendation, snap checklist.Snapshot) (string, *tgmodels.InlineKeyboardMarkup) {
	return services.FormatChecklist(rec, snap.Summary), checklistKeyboard(rec.ID, rec.Steps, snap.Completed)
}
