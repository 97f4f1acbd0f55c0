package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/ad/go-strategy-coach/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrRecommendationNotFound = errors.New("recommendation not found")

// historyConcurrency bounds the per-recommendation progress queries.
const historyConcurrency = 4

type HistoryItem struct {
	Recommendation *models.WeeklyRecommendation
	Completed      int
	Percentage     int
}

type Dashboard struct {
	BusinessName string
	Current      *models.WeeklyRecommendation
	Strategies   []*models.MarketingStrategy
}

type StrategyService struct {
	recs       *db.RecommendationRepository
	strategies *db.StrategyRepository
	progress   *db.ProgressRepository
	profiles   *db.ProfileRepository
	logger     *zap.Logger
}

func NewStrategyService(
	recs *db.RecommendationRepository,
	strategies *db.StrategyRepository,
	progress *db.ProgressRepository,
	profiles *db.ProfileRepository,
	logger *zap.Logger,
) *StrategyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StrategyService{
		recs:       recs,
		strategies: strategies,
		progress:   progress,
		profiles:   profiles,
		logger:     logger.Named("strategy"),
	}
}

// CurrentRecommendation returns the latest week's recommendation or nil.
func (s *StrategyService) CurrentRecommendation(ctx context.Context, userID string) (*models.WeeklyRecommendation, error) {
	return s.recs.Latest(ctx, userID)
}

func (s *StrategyService) Recommendation(ctx context.Context, userID, id string) (*models.WeeklyRecommendation, error) {
	rec, err := s.recs.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecommendationNotFound, id)
	}
	return rec, nil
}

// History lists every recommendation, newest week first, with its completion.
func (s *StrategyService) History(ctx context.Context, userID string) ([]HistoryItem, error) {
	recs, err := s.recs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyConcurrency)
	for i, rec := range recs {
		g.Go(func() error {
			completed, err := s.progress.CountCompleted(gctx, userID, rec.ID, len(rec.Steps))
			if err != nil {
				return fmt.Errorf("progress for %s: %w", rec.ID, err)
			}
			items[i] = HistoryItem{
				Recommendation: rec,
				Completed:      completed,
				Percentage:     checklist.Percentage(completed, len(rec.Steps)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *StrategyService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := s.profiles.GetByUser(gctx, userID)
		if err != nil {
			return err
		}
		if profile != nil {
			dash.BusinessName = profile.BusinessName
		}
		return nil
	})
	g.Go(func() error {
		rec, err := s.recs.Latest(gctx, userID)
		dash.Current = rec
		return err
	})
	g.Go(func() error {
		strategies, err := s.strategies.ListByUser(gctx, userID)
		dash.Strategies = strategies
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dash, nil
}

// ImportFile is the document produced by the external strategy generator.
type ImportFile struct {
	Recommendations []ImportedRecommendation `json:"weekly_recommendations"`
	Strategies      []ImportedStrategy       `json:"marketing_strategies"`
}

type ImportedRecommendation struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	WeekNumber     int             `json:"week_number"`
	Title          string          `json:"title"`
	WhyThisWorks   string          `json:"why_this_works"`
	Steps          json.RawMessage `json:"step_by_step_actions"`
	CopyTemplates  string          `json:"copy_templates"`
	EstimatedTime  string          `json:"estimated_time"`
	ExpectedResult string          `json:"expected_result"`
}

type ImportedStrategy struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	WeekOf  string `json:"week_of"`
}

type ImportResult struct {
	Recommendations int
	Strategies      int
}

func ParseImport(r io.Reader) (*ImportFile, error) {
	var file ImportFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	return &file, nil
}

// Import validates the whole file before writing anything.
func (s *StrategyService) Import(ctx context.Context, file *ImportFile) (ImportResult, error) {
	recs := make([]*models.WeeklyRecommendation, 0, len(file.Recommendations))
	for i, in := range file.Recommendations {
		rec, err := in.toModel()
		if err != nil {
			return ImportResult{}, fmt.Errorf("weekly_recommendations[%d]: %w", i, err)
		}
		recs = append(recs, rec)
	}

	strategies := make([]*models.MarketingStrategy, 0, len(file.Strategies))
	for i, in := range file.Strategies {
		st, err := in.toModel()
		if err != nil {
			return ImportResult{}, fmt.Errorf("marketing_strategies[%d]: %w", i, err)
		}
		strategies = append(strategies, st)
	}

	var result ImportResult
	for _, rec := range recs {
		if err := s.ImportRecommendation(ctx, rec); err != nil {
			return result, err
		}
		result.Recommendations++
	}
	for _, st := range strategies {
		if err := s.strategies.Create(ctx, st); err != nil {
			return result, fmt.Errorf("save strategy %q: %w", st.Title, err)
		}
		result.Strategies++
	}
	return result, nil
}

func (s *StrategyService) ImportRecommendation(ctx context.Context, rec *models.WeeklyRecommendation) error {
	if err := s.recs.Create(ctx, rec); err != nil {
		return fmt.Errorf("save recommendation %q: %w", rec.Title, err)
	}
	s.logger.Info("recommendation imported",
		zap.String("id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.Int("week", rec.WeekNumber),
		zap.Int("steps", len(rec.Steps)))
	return nil
}

func (in ImportedRecommendation) toModel() (*models.WeeklyRecommendation, error) {
	if in.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.New("title is required")
	}
	steps, err := db.ParseSteps(in.Steps)
	if err != nil {
		return nil, err
	}
	return &models.WeeklyRecommendation{
		ID:             in.ID,
		UserID:         in.UserID,
		WeekNumber:     in.WeekNumber,
		Title:          in.Title,
		WhyThisWorks:   in.WhyThisWorks,
		Steps:          steps,
		CopyTemplates:  in.CopyTemplates,
		EstimatedTime:  in.EstimatedTime,
		ExpectedResult: in.ExpectedResult,
	}, nil
}

func (in ImportedStrategy) toModel() (*models.MarketingStrategy, error) {
	if in.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	weekOf, err := parseWeekOf(in.WeekOf)
	if err != nil {
		return nil, err
	}
	return &models.MarketingStrategy{
		ID:      in.ID,
		UserID:  in.UserID,
		Title:   in.Title,
		Content: in.Content,
		WeekOf:  weekOf,
	}, nil
}

func parseWeekOf(s string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid week_of %q", s)
}
