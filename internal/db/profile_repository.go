package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/google/uuid"
)

type ProfileRepository struct {
	queue *DBQueue
}

func NewProfileRepository(queue *DBQueue) *ProfileRepository {
	return &ProfileRepository{queue: queue}
}

// Upsert writes the profile keyed by user id; one profile per user.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.BusinessProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`
			INSERT INTO business_profiles (id, user_id, business_name, industry, business_type, city, budget_range, goals, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				business_name = excluded.business_name,
				industry = excluded.industry,
				business_type = excluded.business_type,
				city = excluded.city,
				budget_range = excluded.budget_range,
				goals = excluded.goals,
				description = excluded.description,
				updated_at = excluded.updated_at
		`), p.ID, p.UserID, p.BusinessName, p.Industry, p.BusinessType, p.City, p.BudgetRange, p.Goals, p.Description(), p.CreatedAt, p.UpdatedAt)
		return nil, err
	})
	return err
}

// GetByUser returns nil without an error when the user has no profile yet.
func (r *ProfileRepository) GetByUser(ctx context.Context, userID string) (*models.BusinessProfile, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		row := db.QueryRowContext(ctx, r.queue.Rebind(`
			SELECT id, user_id, business_name, industry, business_type, city, budget_range, goals, created_at, updated_at
			FROM business_profiles WHERE user_id = ?
		`), userID)

		var p models.BusinessProfile
		var createdAt, updatedAt sql.NullTime
		err := row.Scan(&p.ID, &p.UserID, &p.BusinessName, &p.Industry, &p.BusinessType, &p.City, &p.BudgetRange, &p.Goals, &createdAt, &updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return (*models.BusinessProfile)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		if createdAt.Valid {
			p.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			p.UpdatedAt = updatedAt.Time
		}
		if p.BusinessType == "" {
			p.BusinessType = models.DefaultBusinessType
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.BusinessProfile), nil
}

func (r *ProfileRepository) Exists(ctx context.Context, userID string) (bool, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		var count int
		err := db.QueryRowContext(ctx, r.queue.Rebind(`
			SELECT COUNT(*) FROM business_profiles WHERE user_id = ?
		`), userID).Scan(&count)
		return count > 0, err
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}
