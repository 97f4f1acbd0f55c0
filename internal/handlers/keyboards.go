package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ad/go-strategy-coach/internal/fsm"
	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/ad/go-strategy-coach/internal/services"
	tgmodels "github.com/go-telegram/bot/models"
)

const (
	prefixCheck       = "chk:"
	prefixOpen        = "open:"
	prefixProfile     = "pf:"
	callbackEditProf  = "edit_profile"
	maxButtonStepText = 48
)

// parseCheckCallback splits "chk:<recID>:<step>".
func parseCheckCallback(data string) (recID string, step int, ok bool) {
	rest, found := strings.CutPrefix(data, prefixCheck)
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		return "", 0, false
	}
	step, err := strconv.Atoi(rest[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return rest[:idx], step, true
}

func checkCallback(recID string, step int) string {
	return fmt.Sprintf("%s%s:%d", prefixCheck, recID, step)
}

func checklistKeyboard(recID string, steps []string, completed map[int]bool) *tgmodels.InlineKeyboardMarkup {
	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(steps))
	for i, step := range steps {
		mark := "⬜"
		if completed[i] {
			mark = "✅"
		}
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         fmt.Sprintf("%s %d. %s", mark, i+1, truncate(step, maxButtonStepText)),
			CallbackData: checkCallback(recID, i),
		}})
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func historyKeyboard(items []services.HistoryItem) *tgmodels.InlineKeyboardMarkup {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(items))
	for _, item := range items {
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         fmt.Sprintf("Week %d · %d%%", item.Recommendation.WeekNumber, item.Percentage),
			CallbackData: prefixOpen + item.Recommendation.ID,
		}})
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// profileChoiceKeyboard returns the buttons for states answered by a choice.
func profileChoiceKeyboard(state string) *tgmodels.InlineKeyboardMarkup {
	var rows [][]tgmodels.InlineKeyboardButton
	switch state {
	case fsm.StateProfileIndustry:
		for i, industry := range models.Industries {
			rows = append(rows, []tgmodels.InlineKeyboardButton{{
				Text:         industry,
				CallbackData: fmt.Sprintf("%sind:%d", prefixProfile, i),
			}})
		}
	case fsm.StateProfileType:
		rows = optionRows("type", models.BusinessTypes)
	case fsm.StateProfileBudget:
		rows = optionRows("bud", models.BudgetRanges)
		rows = append(rows, []tgmodels.InlineKeyboardButton{{Text: "Skip", CallbackData: prefixProfile + "bud:"}})
	case fsm.StateProfileGoal:
		for i, goal := range models.MainGoals {
			rows = append(rows, []tgmodels.InlineKeyboardButton{{
				Text:         goal,
				CallbackData: fmt.Sprintf("%sgoal:%d", prefixProfile, i),
			}})
		}
	default:
		return nil
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func optionRows(field string, options []models.Option) [][]tgmodels.InlineKeyboardButton {
	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, []tgmodels.InlineKeyboardButton{{
			Text:         o.Label,
			CallbackData: fmt.Sprintf("%s%s:%s", prefixProfile, field, o.Value),
		}})
	}
	return rows
}

// parseProfileCallback maps "pf:<field>:<value>" to the state it answers and
// the stored value.
func parseProfileCallback(data string) (state, value string, ok bool) {
	rest, found := strings.CutPrefix(data, prefixProfile)
	if !found {
		return "", "", false
	}
	field, raw, found := strings.Cut(rest, ":")
	if !found {
		return "", "", false
	}

	switch field {
	case "ind":
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 || i >= len(models.Industries) {
			return "", "", false
		}
		return fsm.StateProfileIndustry, models.Industries[i], true
	case "type":
		if _, ok := models.FindOption(models.BusinessTypes, raw); !ok {
			return "", "", false
		}
		return fsm.StateProfileType, raw, true
	case "bud":
		if raw != "" {
			if _, ok := models.FindOption(models.BudgetRanges, raw); !ok {
				return "", "", false
			}
		}
		return fsm.StateProfileBudget, raw, true
	case "goal":
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 || i >= len(models.MainGoals) {
			return "", "", false
		}
		return fsm.StateProfileGoal, models.MainGoals[i], true
	}
	return "", "", false
}

func editProfileKeyboard() *tgmodels.InlineKeyboardMarkup {
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: [][]tgmodels.InlineKeyboardButton{
		{{Text: "✏️ Edit profile", CallbackData: callbackEditProf}},
	}}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
