package db

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	taskQueued int32 = iota
	taskRunning
	taskAbandoned
)

type DBTask struct {
	Ctx  context.Context
	Exec func(context.Context, *sql.DB) (interface{}, error)
	Resp chan DBResult

	// state moves from queued to running when the worker picks the task up,
	// or to abandoned when the caller gives up first. Exactly one wins.
	state *atomic.Int32
}

type DBResult struct {
	Data interface{}
	Err  error
}

// DBQueue funnels every statement through one worker goroutine so that sqlite
// never sees concurrent writers. Postgres uses the same path for uniformity.
type DBQueue struct {
	tasks      chan DBTask
	db         *sql.DB
	dialect    Dialect
	maxRetry   int
	retryDelay time.Duration
	testMode   bool
	done       chan struct{}
}

func NewDBQueue(db *sql.DB, dialect Dialect) *DBQueue {
	return newQueue(db, dialect, 100*time.Millisecond, false)
}

func NewDBQueueForTest(db *sql.DB) *DBQueue {
	return newQueue(db, DialectSQLite, 1*time.Millisecond, true) // Minimal delay for tests
}

func newQueue(db *sql.DB, dialect Dialect, retryDelay time.Duration, testMode bool) *DBQueue {
	q := &DBQueue{
		tasks:      make(chan DBTask, 100),
		db:         db,
		dialect:    dialect,
		maxRetry:   3,
		retryDelay: retryDelay,
		testMode:   testMode,
		done:       make(chan struct{}),
	}
	go q.worker()
	return q
}

func (q *DBQueue) Execute(ctx context.Context, task func(context.Context, *sql.DB) (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := DBTask{Ctx: ctx, Exec: task, Resp: make(chan DBResult, 1), state: new(atomic.Int32)}
	select {
	case q.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-t.Resp:
		return result.Data, result.Err
	case <-ctx.Done():
		if t.state.CompareAndSwap(taskQueued, taskAbandoned) {
			return nil, ctx.Err()
		}
		// Already running: only its result says whether the write happened.
		result := <-t.Resp
		return result.Data, result.Err
	}
}

func (q *DBQueue) worker() {
	defer close(q.done)
	for task := range q.tasks {
		if !task.state.CompareAndSwap(taskQueued, taskRunning) {
			continue
		}
		task.Resp <- q.executeWithRetry(task)
	}
}

func (q *DBQueue) executeWithRetry(task DBTask) DBResult {
	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		if err := task.Ctx.Err(); err != nil {
			return DBResult{Err: err}
		}
		data, err := task.Exec(task.Ctx, q.db)
		if err == nil {
			return DBResult{Data: data, Err: nil}
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		if attempt < q.maxRetry-1 { // Don't sleep after the last attempt
			if q.testMode {
				time.Sleep(q.retryDelay)
			} else {
				time.Sleep(time.Duration(attempt+1) * q.retryDelay)
			}
		}
	}
	return DBResult{Err: lastErr}
}

// isRetryable reports whether repeating the statement could change the outcome.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, sql.ErrNoRows),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		IsUniqueViolation(err):
		return false
	}
	return true
}

// Close stops accepting tasks and waits for the worker to drain.
func (q *DBQueue) Close() {
	close(q.tasks)
	<-q.done
}

func (q *DBQueue) DB() *sql.DB {
	return q.db
}

func (q *DBQueue) Dialect() Dialect {
	return q.dialect
}

// Rebind rewrites '?' placeholders into the dialect's positional form.
func (q *DBQueue) Rebind(query string) string {
	return rebind(q.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
