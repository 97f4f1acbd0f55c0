package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"
)

var testDBCounter int64

func setupTestQueue(t testing.TB) *DBQueue {
	t.Helper()

	name := fmt.Sprintf("file:dbtest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	sqlDB, err := sql.Open("sqlite", name)
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	queue := NewDBQueueForTest(sqlDB)
	t.Cleanup(func() {
		queue.Close()
		sqlDB.Close()
	})

	if err := InitSchema(context.Background(), queue); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return queue
}
