package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/ad/go-strategy-coach/internal/models"
)

// DraftRepository keeps in-progress profile capture conversations.
type DraftRepository struct {
	queue *DBQueue
}

func NewDraftRepository(queue *DBQueue) *DraftRepository {
	return &DraftRepository{queue: queue}
}

func (r *DraftRepository) Save(ctx context.Context, draft *models.ProfileDraft) error {
	data, err := json.Marshal(draft.Profile)
	if err != nil {
		return err
	}
	_, err = r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`
			INSERT INTO profile_drafts (user_id, current_state, draft)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				current_state = excluded.current_state,
				draft = excluded.draft
		`), draft.UserID, draft.CurrentState, string(data))
		return nil, err
	})
	return err
}

// Get returns nil without an error when the user has no open draft.
func (r *DraftRepository) Get(ctx context.Context, userID string) (*models.ProfileDraft, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		var draft models.ProfileDraft
		var data string
		err := db.QueryRowContext(ctx, r.queue.Rebind(`
			SELECT user_id, current_state, draft FROM profile_drafts WHERE user_id = ?
		`), userID).Scan(&draft.UserID, &draft.CurrentState, &data)
		if errors.Is(err, sql.ErrNoRows) {
			return (*models.ProfileDraft)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &draft.Profile); err != nil {
			return nil, err
		}
		return &draft, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.ProfileDraft), nil
}

func (r *DraftRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`DELETE FROM profile_drafts WHERE user_id = ?`), userID)
		return nil, err
	})
	return err
}
