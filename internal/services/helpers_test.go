package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	_ "modernc.org/sqlite"
)

var testDBCounter int64

func setupTestQueue(t testing.TB) *db.DBQueue {
	t.Helper()

	name := fmt.Sprintf("file:servicestest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	sqlDB, err := sql.Open("sqlite", name)
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	queue := db.NewDBQueueForTest(sqlDB)
	t.Cleanup(func() {
		queue.Close()
		sqlDB.Close()
	})

	if err := db.InitSchema(context.Background(), queue); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return queue
}

// fakeBot records calls and fails the first failSends sends.
type fakeBot struct {
	mu        sync.Mutex
	sent      []*bot.SendMessageParams
	edits     []*bot.EditMessageTextParams
	deleted   []int
	failSends int
	sendErr   error
	editErr   error
	nextID    int
}

func (f *fakeBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	if f.failSends > 0 {
		f.failSends--
		if f.sendErr == nil {
			return nil, errors.New("network error")
		}
		return nil, f.sendErr
	}
	f.nextID++
	return &tgmodels.Message{ID: f.nextID}, nil
}

func (f *fakeBot) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, params)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &tgmodels.Message{ID: params.MessageID}, nil
}

func (f *fakeBot) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, params.MessageID)
	return true, nil
}

func (f *fakeBot) sentTo(chatID int64) []*bot.SendMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*bot.SendMessageParams
	for _, p := range f.sent {
		if id, _ := p.ChatID.(int64); id == chatID {
			out = append(out, p)
		}
	}
	return out
}
