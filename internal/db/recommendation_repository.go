package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/google/uuid"
)

type RecommendationRepository struct {
	queue *DBQueue
}

func NewRecommendationRepository(queue *DBQueue) *RecommendationRepository {
	return &RecommendationRepository{queue: queue}
}

const recommendationColumns = `id, user_id, week_number, title, why_this_works, step_by_step_actions,
	copy_templates, estimated_time, expected_result, created_at`

func (r *RecommendationRepository) Create(ctx context.Context, rec *models.WeeklyRecommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	steps, err := EncodeSteps(rec.Steps)
	if err != nil {
		return err
	}

	_, err = r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`
			INSERT INTO weekly_recommendations (`+recommendationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), rec.ID, rec.UserID, rec.WeekNumber, rec.Title, rec.WhyThisWorks, steps,
			rec.CopyTemplates, rec.EstimatedTime, rec.ExpectedResult, rec.CreatedAt)
		return nil, err
	})
	return err
}

// GetForUser returns nil without an error when the recommendation does not
// exist or belongs to someone else.
func (r *RecommendationRepository) GetForUser(ctx context.Context, userID, id string) (*models.WeeklyRecommendation, error) {
	return r.getOne(ctx, `SELECT `+recommendationColumns+`
		FROM weekly_recommendations WHERE user_id = ? AND id = ?`, userID, id)
}

// Latest returns the recommendation with the highest week number, or nil.
func (r *RecommendationRepository) Latest(ctx context.Context, userID string) (*models.WeeklyRecommendation, error) {
	return r.getOne(ctx, `SELECT `+recommendationColumns+`
		FROM weekly_recommendations WHERE user_id = ?
		ORDER BY week_number DESC, created_at DESC LIMIT 1`, userID)
}

func (r *RecommendationRepository) ListByUser(ctx context.Context, userID string) ([]*models.WeeklyRecommendation, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		rows, err := db.QueryContext(ctx, r.queue.Rebind(`SELECT `+recommendationColumns+`
			FROM weekly_recommendations WHERE user_id = ?
			ORDER BY week_number DESC, created_at DESC`), userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var recs []*models.WeeklyRecommendation
		for rows.Next() {
			rec, err := scanRecommendation(rows)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		return recs, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.WeeklyRecommendation), nil
}

func (r *RecommendationRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.WeeklyRecommendation, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		rec, err := scanRecommendation(db.QueryRowContext(ctx, r.queue.Rebind(query), args...))
		if errors.Is(err, sql.ErrNoRows) {
			return (*models.WeeklyRecommendation)(nil), nil
		}
		return rec, err
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.WeeklyRecommendation), nil
}

func scanRecommendation(row rowScanner) (*models.WeeklyRecommendation, error) {
	var rec models.WeeklyRecommendation
	var steps string
	var createdAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.UserID, &rec.WeekNumber, &rec.Title, &rec.WhyThisWorks, &steps,
		&rec.CopyTemplates, &rec.EstimatedTime, &rec.ExpectedResult, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Steps, err = ParseSteps([]byte(steps))
	if err != nil {
		return nil, fmt.Errorf("recommendation %s: %w", rec.ID, err)
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	return &rec, nil
}
