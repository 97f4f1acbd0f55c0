// Package checklist keeps a per-step completion view for one (user,
// recommendation) pair in sync with the progress store.
//
// Toggles are applied locally first and observers are notified before the
// store is touched. The store is then reconciled for that step only; when
// reconciliation fails the step is put back to its previous value and
// observers are notified again.
package checklist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/ad/go-strategy-coach/internal/identity"
	"github.com/ad/go-strategy-coach/internal/models"
	"go.uber.org/zap"
)

var (
	ErrLoadFailure           = errors.New("could not load progress")
	ErrInvalidStep           = errors.New("invalid step")
	ErrReconciliationFailure = errors.New("could not save progress")
)

const DefaultReconcileTimeout = 10 * time.Second

// RecordStore is the subset of the progress table the checklist needs.
// FindProgress returns nil, nil when no record exists.
type RecordStore interface {
	ListProgress(ctx context.Context, userID, recommendationID string) ([]*models.ProgressRecord, error)
	FindProgress(ctx context.Context, userID, recommendationID string, stepIndex int) (*models.ProgressRecord, error)
	InsertProgress(ctx context.Context, record *models.ProgressRecord) error
	UpdateProgress(ctx context.Context, id string, completed bool, updatedAt time.Time) error
}

type Summary struct {
	CompletedCount int
	TotalSteps     int
	Percentage     int
}

// Percentage rounds completed/total to a whole percent; zero steps is 0%.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

type Snapshot struct {
	UserID           string
	RecommendationID string
	Completed        map[int]bool
	Summary          Summary
}

// Failure describes a toggle that was rolled back.
type Failure struct {
	UserID           string
	RecommendationID string
	Step             int
	Err              error
}

type Option func(*Sync)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sync) {
		if logger != nil {
			s.logger = logger.Named("checklist")
		}
	}
}

func WithReconcileTimeout(d time.Duration) Option {
	return func(s *Sync) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithFailureHandler(fn func(Failure)) Option {
	return func(s *Sync) { s.onFailure = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sync) { s.now = now }
}

type Sync struct {
	store     RecordStore
	steps     []string
	logger    *zap.Logger
	timeout   time.Duration
	onFailure func(Failure)
	now       func() time.Time

	// loadMu is held exclusively by Load and shared by toggles, so a fetched
	// snapshot never lands on top of a toggle that settled after the fetch.
	loadMu sync.RWMutex

	mu        sync.Mutex
	userID    string
	recID     string
	state     map[int]bool
	stepLocks map[int]*sync.Mutex

	notifyMu sync.Mutex
	subs     map[int]func(Snapshot)
	nextSub  int
}

// New creates a checklist over steps. The step list only fixes N and is kept
// for display; it is never written to the store.
func New(store RecordStore, steps []string, opts ...Option) *Sync {
	s := &Sync{
		store:     store,
		steps:     append([]string(nil), steps...),
		logger:    zap.NewNop(),
		timeout:   DefaultReconcileTimeout,
		now:       time.Now,
		state:     make(map[int]bool),
		stepLocks: make(map[int]*sync.Mutex),
		subs:      make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sync) Steps() []string {
	return append([]string(nil), s.steps...)
}

// Load binds the checklist to (userID, recommendationID) and replaces the
// local state with what the store holds. An empty userID unbinds and returns
// an empty mapping. On a store error the state stays empty. Load waits for
// in-flight toggles to settle and toggles wait for Load to finish.
func (s *Sync) Load(ctx context.Context, userID, recommendationID string) (map[int]bool, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	s.userID = userID
	s.recID = recommendationID
	s.state = make(map[int]bool)
	s.mu.Unlock()

	if userID == "" {
		s.notify()
		return map[int]bool{}, nil
	}

	records, err := s.store.ListProgress(ctx, userID, recommendationID)
	if err != nil {
		s.logger.Warn("load failed",
			zap.String("user_id", userID),
			zap.String("recommendation_id", recommendationID),
			zap.Error(err))
		s.notify()
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}

	loaded := make(map[int]bool, len(records))
	for _, r := range records {
		loaded[r.StepIndex] = r.Completed
	}

	s.mu.Lock()
	for k, v := range loaded {
		s.state[k] = v
	}
	s.mu.Unlock()
	s.notify()

	return copyState(loaded), nil
}

// Follow loads for the provider's current user and reloads on every identity
// change until the returned stop function is called.
func (s *Sync) Follow(ctx context.Context, provider identity.Provider, recommendationID string) (stop func(), err error) {
	userID, _ := provider.CurrentUser()
	_, err = s.Load(ctx, userID, recommendationID)

	cancel := provider.OnChange(func(userID string) {
		if _, err := s.Load(ctx, userID, recommendationID); err != nil {
			s.logger.Warn("reload after identity change failed", zap.String("user_id", userID), zap.Error(err))
		}
	})
	return cancel, err
}

// Toggle flips one step. It returns ErrInvalidStep for an index outside the
// step list and nil otherwise: a failed reconciliation is rolled back locally
// and reported through the failure handler, never to the caller. Toggles of
// the same step are serialized; toggles of different steps are independent.
func (s *Sync) Toggle(ctx context.Context, step int) error {
	if step < 0 || step >= len(s.steps) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidStep, step, len(s.steps))
	}

	s.loadMu.RLock()
	defer s.loadMu.RUnlock()

	lock := s.stepLock(step)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return nil
	}
	userID, recID := s.userID, s.recID
	current, had := s.state[step]
	next := !current
	s.state[step] = next
	s.mu.Unlock()
	s.notify()

	err := s.reconcile(ctx, userID, recID, step, next)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	if had {
		s.state[step] = current
	} else {
		delete(s.state, step)
	}
	s.mu.Unlock()
	s.notify()

	failure := Failure{
		UserID:           userID,
		RecommendationID: recID,
		Step:             step,
		Err:              fmt.Errorf("%w: %w", ErrReconciliationFailure, err),
	}
	s.logger.Warn("toggle rolled back",
		zap.String("user_id", userID),
		zap.String("recommendation_id", recID),
		zap.Int("step", step),
		zap.Bool("completed", next),
		zap.Error(err))
	if s.onFailure != nil {
		s.onFailure(failure)
	}
	return nil
}

func (s *Sync) reconcile(ctx context.Context, userID, recID string, step int, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	existing, err := s.store.FindProgress(ctx, userID, recID, step)
	if err != nil {
		return fmt.Errorf("check step %d: %w", step, err)
	}
	if existing != nil {
		return s.update(ctx, existing.ID, step, completed)
	}

	err = s.store.InsertProgress(ctx, &models.ProgressRecord{
		UserID:           userID,
		RecommendationID: recID,
		StepIndex:        step,
		Completed:        completed,
		UpdatedAt:        s.now(),
	})
	if err == nil {
		return nil
	}
	if !db.IsUniqueViolation(err) {
		return fmt.Errorf("insert step %d: %w", step, err)
	}

	// Another session created the record between the check and the insert.
	existing, findErr := s.store.FindProgress(ctx, userID, recID, step)
	if findErr != nil || existing == nil {
		return fmt.Errorf("insert step %d: %w", step, err)
	}
	s.logger.Debug("insert conflict, updating existing record", zap.Int("step", step))
	return s.update(ctx, existing.ID, step, completed)
}

func (s *Sync) update(ctx context.Context, id string, step int, completed bool) error {
	if err := s.store.UpdateProgress(ctx, id, completed, s.now()); err != nil {
		return fmt.Errorf("update step %d: %w", step, err)
	}
	return nil
}

func (s *Sync) stepLock(step int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.stepLocks[step]
	if !ok {
		lock = &sync.Mutex{}
		s.stepLocks[step] = lock
	}
	return lock
}

// Completed reports a step's local value; unknown steps are false.
func (s *Sync) Completed(step int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[step]
}

func (s *Sync) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Sync) summaryLocked() Summary {
	total := len(s.steps)
	completed := 0
	for step, done := range s.state {
		if done && step >= 0 && step < total {
			completed++
		}
	}
	return Summary{
		CompletedCount: completed,
		TotalSteps:     total,
		Percentage:     Percentage(completed, total),
	}
}

func (s *Sync) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		UserID:           s.userID,
		RecommendationID: s.recID,
		Completed:        copyState(s.state),
		Summary:          s.summaryLocked(),
	}
}

// Subscribe registers fn for state changes. fn runs on the goroutine that
// changed the state and must not call Toggle or Load synchronously.
func (s *Sync) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.subs, id)
			s.notifyMu.Unlock()
		})
	}
}

// notify delivers the latest snapshot; holding notifyMu keeps deliveries in
// state order.
func (s *Sync) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.subs {
		fn(snap)
	}
}

func copyState(in map[int]bool) map[int]bool {
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
