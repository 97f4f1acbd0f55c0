package db

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	_ "modernc.org/sqlite"
	"pgregory.net/rapid"
)

func TestDBQueueRetry_Property(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	queue := NewDBQueueForTest(db)
	defer queue.Close()

	rapid.Check(t, func(t *rapid.T) {
		failUntil := rapid.IntRange(0, 4).Draw(t, "failUntil")
		expectedData := rapid.Int().Draw(t, "expectedData")

		var attempts int32

		task := func(_ context.Context, _ *sql.DB) (interface{}, error) {
			attempt := int(atomic.AddInt32(&attempts, 1))
			if attempt <= failUntil {
				return nil, errors.New("simulated failure")
			}
			return expectedData, nil
		}

		result, err := queue.Execute(context.Background(), task)

		actualAttempts := int(atomic.LoadInt32(&attempts))

		if failUntil >= 3 {
			if err == nil {
				t.Fatalf("expected error after 3 retries, got nil")
			}
			if actualAttempts != 3 {
				t.Fatalf("expected exactly 3 attempts, got %d", actualAttempts)
			}
		} else {
			if err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if result != expectedData {
				t.Fatalf("expected data %v, got %v", expectedData, result)
			}
			expectedAttempts := failUntil + 1
			if actualAttempts != expectedAttempts {
				t.Fatalf("expected %d attempts, got %d", expectedAttempts, actualAttempts)
			}
		}
	})
}

func TestDBQueue_NoRetryOnNoRows(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	queue := NewDBQueueForTest(db)
	defer queue.Close()

	var attempts int32
	_, err = queue.Execute(context.Background(), func(_ context.Context, _ *sql.DB) (interface{}, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, sql.ErrNoRows
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestDBQueue_CancelledContext(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	queue := NewDBQueueForTest(db)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called int32
	_, err = queue.Execute(ctx, func(_ context.Context, _ *sql.DB) (interface{}, error) {
		atomic.AddInt32(&called, 1)
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called != 0 {
		t.Error("task must not run for a cancelled context")
	}
}

func TestDBQueue_TimeoutWhileWaiting(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	queue := NewDBQueueForTest(db)
	defer queue.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go queue.Execute(context.Background(), func(_ context.Context, _ *sql.DB) (interface{}, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = queue.Execute(ctx, func(_ context.Context, _ *sql.DB) (interface{}, error) {
		return nil, nil
	})
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDBQueue_RunningTaskResultWinsOverCancel(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	queue := NewDBQueueForTest(db)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	type outcome struct {
		data interface{}
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := queue.Execute(ctx, func(_ context.Context, _ *sql.DB) (interface{}, error) {
			close(started)
			<-release
			return "committed", nil
		})
		done <- outcome{data, err}
	}()

	<-started
	cancel()

	select {
	case got := <-done:
		t.Fatalf("Execute returned %v before the running task finished", got.err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	got := <-done
	if got.err != nil {
		t.Fatalf("expected the task's own result, got %v", got.err)
	}
	if got.data != "committed" {
		t.Errorf("unexpected data %v", got.data)
	}
}

func TestDBQueue_AbandonedTaskIsSkipped(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	queue := NewDBQueueForTest(db)
	defer queue.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go queue.Execute(context.Background(), func(_ context.Context, _ *sql.DB) (interface{}, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	var ran int32
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := queue.Execute(ctx, func(_ context.Context, _ *sql.DB) (interface{}, error) {
		atomic.AddInt32(&ran, 1)
		return nil, nil
	}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)

	// A later task proves the worker has moved past the abandoned one.
	if _, err := queue.Execute(context.Background(), func(_ context.Context, _ *sql.DB) (interface{}, error) {
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&ran); n != 0 {
		t.Errorf("abandoned task ran %d times", n)
	}
}

func TestDBQueue_CloseStopsWorker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	queue := NewDBQueueForTest(db)
	if _, err := queue.Execute(context.Background(), func(_ context.Context, _ *sql.DB) (interface{}, error) {
		return 1, nil
	}); err != nil {
		t.Fatal(err)
	}
	queue.Close()
}

func TestRebind(t *testing.T) {
	query := `SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?`

	if got := rebind(DialectSQLite, query); got != query {
		t.Errorf("sqlite query must be unchanged, got %q", got)
	}

	want := `SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2`
	if got := rebind(DialectPostgres, query); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"":           DialectSQLite,
		"sqlite":     DialectSQLite,
		"Postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
	}
	for in, want := range cases {
		got, err := ParseDialect(in)
		if err != nil {
			t.Fatalf("ParseDialect(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseDialect(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseDialect("mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
