package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/google/uuid"
)

type ProgressRepository struct {
	queue *DBQueue
}

func NewProgressRepository(queue *DBQueue) *ProgressRepository {
	return &ProgressRepository{queue: queue}
}

func (r *ProgressRepository) ListProgress(ctx context.Context, userID, recommendationID string) ([]*models.ProgressRecord, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		rows, err := db.QueryContext(ctx, r.queue.Rebind(`
			SELECT id, user_id, recommendation_id, step_index, completed, created_at, updated_at
			FROM progress_tracking WHERE user_id = ? AND recommendation_id = ?
			ORDER BY step_index
		`), userID, recommendationID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var records []*models.ProgressRecord
		for rows.Next() {
			record, err := scanProgress(rows)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		return records, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.ProgressRecord), nil
}

// FindProgress returns nil without an error when no record exists for the step.
func (r *ProgressRepository) FindProgress(ctx context.Context, userID, recommendationID string, stepIndex int) (*models.ProgressRecord, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		row := db.QueryRowContext(ctx, r.queue.Rebind(`
			SELECT id, user_id, recommendation_id, step_index, completed, created_at, updated_at
			FROM progress_tracking WHERE user_id = ? AND recommendation_id = ? AND step_index = ?
		`), userID, recommendationID, stepIndex)

		record, err := scanProgress(row)
		if errors.Is(err, sql.ErrNoRows) {
			return (*models.ProgressRecord)(nil), nil
		}
		return record, err
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.ProgressRecord), nil
}

func (r *ProgressRepository) InsertProgress(ctx context.Context, record *models.ProgressRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`
			INSERT INTO progress_tracking (id, user_id, recommendation_id, step_index, completed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`), record.ID, record.UserID, record.RecommendationID, record.StepIndex, record.Completed, record.CreatedAt, record.UpdatedAt)
		return nil, err
	})
	return err
}

func (r *ProgressRepository) UpdateProgress(ctx context.Context, id string, completed bool, updatedAt time.Time) error {
	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		res, err := db.ExecContext(ctx, r.queue.Rebind(`
			UPDATE progress_tracking SET completed = ?, updated_at = ? WHERE id = ?
		`), completed, updatedAt.UTC(), id)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, sql.ErrNoRows
		}
		return nil, nil
	})
	return err
}

// CountCompleted returns how many steps below totalSteps are marked complete.
func (r *ProgressRepository) CountCompleted(ctx context.Context, userID, recommendationID string, totalSteps int) (int, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		var count int
		err := db.QueryRowContext(ctx, r.queue.Rebind(`
			SELECT COUNT(*) FROM progress_tracking
			WHERE user_id = ? AND recommendation_id = ? AND completed = ? AND step_index < ?
		`), userID, recommendationID, true, totalSteps).Scan(&count)
		return count, err
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (r *ProgressRepository) DeleteByRecommendation(ctx context.Context, recommendationID string) error {
	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`
			DELETE FROM progress_tracking WHERE recommendation_id = ?
		`), recommendationID)
		return nil, err
	})
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgress(row rowScanner) (*models.ProgressRecord, error) {
	var record models.ProgressRecord
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&record.ID, &record.UserID, &record.RecommendationID, &record.StepIndex, &record.Completed, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		record.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time
	}
	return &record, nil
}
