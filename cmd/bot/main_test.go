package main

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatUser(t *testing.T) {
	tests := []struct {
		user tgmodels.User
		want string
	}{
		{tgmodels.User{ID: 1, FirstName: "Ann"}, "Ann [1]"},
		{tgmodels.User{ID: 2, FirstName: "Ann", LastName: "Lee"}, "Ann Lee [2]"},
		{tgmodels.User{ID: 3, FirstName: "Ann", Username: "annlee"}, "Ann @annlee [3]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUser(tt.user))
	}
}

func TestLogMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	called := 0
	next := func(context.Context, *bot.Bot, *tgmodels.Update) { called++ }

	h := logMiddleware(zap.New(core))(next)
	h(context.Background(), nil, &tgmodels.Update{
		Message: &tgmodels.Message{From: &tgmodels.User{ID: 5, FirstName: "Bo"}, Text: "/focus"},
	})
	h(context.Background(), nil, &tgmodels.Update{
		CallbackQuery: &tgmodels.CallbackQuery{From: tgmodels.User{ID: 5, FirstName: "Bo"}, Data: "chk:abc:0"},
	})
	h(context.Background(), nil, &tgmodels.Update{})

	assert.Equal(t, 3, called)
	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "message", entries[0].Message)
		assert.Equal(t, "/focus", entries[0].ContextMap()["text"])
		assert.Equal(t, "chk:abc:0", entries[1].ContextMap()["data"])
	}
}
