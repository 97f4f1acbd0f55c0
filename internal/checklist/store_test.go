package checklist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ad/go-strategy-coach/internal/models"
)

var errStore = errors.New("store unavailable")

type progressKey struct {
	user string
	rec  string
	step int
}

// memStore is an in-memory RecordStore with switchable failures.
type memStore struct {
	mu      sync.Mutex
	records map[progressKey]*models.ProgressRecord
	nextID  int

	listErr   error
	findErr   error
	insertErr error
	updateErr error

	// beforeInsert runs under no lock before an insert is applied.
	beforeInsert func(record *models.ProgressRecord)
	// afterList runs under no lock once ListProgress has read its records.
	afterList func()
	// block makes Find wait for ctx cancellation.
	block bool

	calls    int32
	inFlight map[int]int
	overlap  int32
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[progressKey]*models.ProgressRecord),
		inFlight: make(map[int]int),
	}
}

func (m *memStore) put(user, rec string, step int, completed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.records[progressKey{user, rec, step}] = &models.ProgressRecord{
		ID:               fmt.Sprintf("r%d", m.nextID),
		UserID:           user,
		RecommendationID: rec,
		StepIndex:        step,
		Completed:        completed,
	}
}

func (m *memStore) remote(user, rec string, step int) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[progressKey{user, rec, step}]
	if !ok {
		return false, false
	}
	return r.Completed, true
}

func (m *memStore) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memStore) setErrors(find, insert, update error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr, m.insertErr, m.updateErr = find, insert, update
}

func (m *memStore) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

func (m *memStore) ListProgress(ctx context.Context, userID, recommendationID string) ([]*models.ProgressRecord, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	if m.listErr != nil {
		m.mu.Unlock()
		return nil, m.listErr
	}
	var out []*models.ProgressRecord
	for k, r := range m.records {
		if k.user == userID && k.rec == recommendationID {
			cp := *r
			out = append(out, &cp)
		}
	}
	afterList := m.afterList
	m.mu.Unlock()

	if afterList != nil {
		afterList()
	}
	return out, nil
}

func (m *memStore) FindProgress(ctx context.Context, userID, recommendationID string, stepIndex int) (*models.ProgressRecord, error) {
	atomic.AddInt32(&m.calls, 1)

	m.mu.Lock()
	m.inFlight[stepIndex]++
	if m.inFlight[stepIndex] > 1 {
		atomic.StoreInt32(&m.overlap, 1)
	}
	block, findErr := m.block, m.findErr
	m.mu.Unlock()

	// Let concurrent toggles of the same step collide if they are not serialized.
	time.Sleep(time.Millisecond)

	defer func() {
		m.mu.Lock()
		m.inFlight[stepIndex]--
		m.mu.Unlock()
	}()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if findErr != nil {
		return nil, findErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[progressKey{userID, recommendationID, stepIndex}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) InsertProgress(ctx context.Context, record *models.ProgressRecord) error {
	atomic.AddInt32(&m.calls, 1)
	if m.beforeInsert != nil {
		m.beforeInsert(record)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	k := progressKey{record.UserID, record.RecommendationID, record.StepIndex}
	if _, ok := m.records[k]; ok {
		return errDuplicate
	}
	m.nextID++
	cp := *record
	cp.ID = fmt.Sprintf("r%d", m.nextID)
	m.records[k] = &cp
	return nil
}

func (m *memStore) UpdateProgress(ctx context.Context, id string, completed bool, updatedAt time.Time) error {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, r := range m.records {
		if r.ID == id {
			r.Completed = completed
			r.UpdatedAt = updatedAt
			return nil
		}
	}
	return errors.New("record not found")
}
