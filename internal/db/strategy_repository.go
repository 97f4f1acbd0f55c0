package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/google/uuid"
)

type StrategyRepository struct {
	queue *DBQueue
}

func NewStrategyRepository(queue *DBQueue) *StrategyRepository {
	return &StrategyRepository{queue: queue}
}

func (r *StrategyRepository) Create(ctx context.Context, s *models.MarketingStrategy) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`
			INSERT INTO marketing_strategies (id, user_id, title, content, week_of, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`), s.ID, s.UserID, s.Title, s.Content, s.WeekOf.UTC(), s.CreatedAt)
		return nil, err
	})
	return err
}

// ListByUser returns strategies newest week first.
func (r *StrategyRepository) ListByUser(ctx context.Context, userID string) ([]*models.MarketingStrategy, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		rows, err := db.QueryContext(ctx, r.queue.Rebind(`
			SELECT id, user_id, title, content, week_of, created_at
			FROM marketing_strategies WHERE user_id = ?
			ORDER BY week_of DESC
		`), userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var strategies []*models.MarketingStrategy
		for rows.Next() {
			var s models.MarketingStrategy
			var createdAt sql.NullTime
			if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Content, &s.WeekOf, &createdAt); err != nil {
				return nil, err
			}
			if createdAt.Valid {
				s.CreatedAt = createdAt.Time
			}
			strategies = append(strategies, &s)
		}
		return strategies, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.MarketingStrategy), nil
}
