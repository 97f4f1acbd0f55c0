package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/ad/go-strategy-coach/internal/fsm"
	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/ad/go-strategy-coach/internal/services"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const maxProfileText = 100

var profileQuestions = map[string]string{
	fsm.StateProfileName:     "What's your business called?",
	fsm.StateProfileIndustry: "Which industry are you in?",
	fsm.StateProfileType:     "What kind of business is it?",
	fsm.StateProfileCity:     "Which city do you operate in?",
	fsm.StateProfileBudget:   "What's your monthly marketing budget?",
	fsm.StateProfileGoal:     "What's your main goal right now?",
}

// startProfileFlow opens a draft. When editing, the draft starts from the
// saved profile so unchanged answers are kept.
func (h *BotHandler) startProfileFlow(ctx context.Context, chatID int64, userID string, editing bool) {
	draft := &models.ProfileDraft{UserID: userID, CurrentState: fsm.StateProfileName}
	if editing {
		existing, err := h.profiles.Get(ctx, userID)
		if err != nil {
			h.logger.Error("load profile failed", zap.String("user_id", userID), zap.Error(err))
		} else if existing != nil {
			draft.Profile = *existing
		}
	}
	draft.Profile.UserID = userID

	if err := h.profiles.SaveDraft(ctx, draft); err != nil {
		h.logger.Error("save draft failed", zap.String("user_id", userID), zap.Error(err))
		h.send(ctx, chatID, "Something went wrong, please try again.", nil)
		return
	}
	h.askProfileQuestion(ctx, chatID, draft.CurrentState)
}

func (h *BotHandler) askProfileQuestion(ctx context.Context, chatID int64, state string) {
	h.send(ctx, chatID, profileQuestions[state], profileChoiceKeyboard(state))
}

// handleProfileText consumes a typed answer when a draft is waiting for one.
func (h *BotHandler) handleProfileText(ctx context.Context, chatID int64, userID, text string) bool {
	draft, err := h.profiles.Draft(ctx, userID)
	if err != nil {
		h.logger.Error("load draft failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if draft == nil || !fsm.IsProfileState(draft.CurrentState) {
		return false
	}
	if !fsm.ExpectsText(draft.CurrentState) {
		h.send(ctx, chatID, "Please pick one of the options above.", profileChoiceKeyboard(draft.CurrentState))
		return true
	}

	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > maxProfileText {
		h.send(ctx, chatID, "Please send a short answer (up to 100 characters).", nil)
		return true
	}

	h.applyProfileAnswer(ctx, chatID, draft, draft.CurrentState, text)
	return true
}

func (h *BotHandler) handleProfileChoice(ctx context.Context, callback *tgmodels.CallbackQuery, chatID int64, userID string) {
	state, value, ok := parseProfileCallback(callback.Data)
	if !ok {
		h.answer(ctx, callback.ID, "")
		return
	}

	draft, err := h.profiles.Draft(ctx, userID)
	if err != nil || draft == nil || draft.CurrentState != state {
		// A button from an earlier question or a finished flow.
		h.answer(ctx, callback.ID, "")
		return
	}
	h.answer(ctx, callback.ID, "")
	h.applyProfileAnswer(ctx, chatID, draft, state, value)
}

func (h *BotHandler) applyProfileAnswer(ctx context.Context, chatID int64, draft *models.ProfileDraft, state, value string) {
	switch state {
	case fsm.StateProfileName:
		draft.Profile.BusinessName = value
	case fsm.StateProfileIndustry:
		draft.Profile.Industry = value
	case fsm.StateProfileType:
		draft.Profile.BusinessType = value
	case fsm.StateProfileCity:
		draft.Profile.City = value
	case fsm.StateProfileBudget:
		draft.Profile.BudgetRange = value
	case fsm.StateProfileGoal:
		draft.Profile.Goals = value
	}

	draft.CurrentState = fsm.NextProfileState(state)
	if draft.CurrentState != fsm.StateProfileDone {
		if err := h.profiles.SaveDraft(ctx, draft); err != nil {
			h.logger.Error("save draft failed", zap.String("user_id", draft.UserID), zap.Error(err))
			h.send(ctx, chatID, "Something went wrong, please try again.", nil)
			return
		}
		h.askProfileQuestion(ctx, chatID, draft.CurrentState)
		return
	}

	h.finishProfile(ctx, chatID, draft)
}

func (h *BotHandler) finishProfile(ctx context.Context, chatID int64, draft *models.ProfileDraft) {
	profile := draft.Profile
	profile.UserID = draft.UserID

	if err := h.profiles.Save(ctx, &profile); err != nil {
		if errors.Is(err, services.ErrInvalidProfile) {
			h.send(ctx, chatID, "Some answers were not valid, let's start over.", nil)
			h.startProfileFlow(ctx, chatID, draft.UserID, false)
			return
		}
		h.logger.Error("save profile failed", zap.String("user_id", draft.UserID), zap.Error(err))
		h.send(ctx, chatID, "Could not save your profile, please try /profile again.", nil)
		return
	}

	if err := h.profiles.ClearDraft(ctx, draft.UserID); err != nil {
		h.logger.Warn("clear draft failed", zap.String("user_id", draft.UserID), zap.Error(err))
	}

	h.send(ctx, chatID, "✅ Profile saved!\n\n"+services.FormatProfile(&profile), nil)
	h.sendDashboard(ctx, chatID, draft.UserID)
}

func (h *BotHandler) handleCancel(ctx context.Context, chatID int64, userID string) {
	if err := h.profiles.ClearDraft(ctx, userID); err != nil {
		h.logger.Warn("clear draft failed", zap.String("user_id", userID), zap.Error(err))
	}
	h.send(ctx, chatID, "Cancelled. "+helpText, nil)
}
