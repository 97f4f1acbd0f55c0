package db

import (
	"context"
	"database/sql"

	"github.com/ad/go-strategy-coach/internal/models"
)

type UserRepository struct {
	queue *DBQueue
}

func NewUserRepository(queue *DBQueue) *UserRepository {
	return &UserRepository{queue: queue}
}

func (r *UserRepository) CreateOrUpdate(ctx context.Context, user *models.User) error {
	_, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, r.queue.Rebind(`
			INSERT INTO users (id, first_name, last_name, username)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				username = excluded.username
		`), user.ID, user.FirstName, user.LastName, user.Username)
		return nil, err
	})
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	result, err := r.queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		row := db.QueryRowContext(ctx, r.queue.Rebind(`
			SELECT id, first_name, last_name, username, created_at
			FROM users WHERE id = ?
		`), id)

		var user models.User
		var firstName, lastName, username sql.NullString
		var createdAt sql.NullTime
		err := row.Scan(&user.ID, &firstName, &lastName, &username, &createdAt)
		if err != nil {
			return nil, err
		}
		user.FirstName = firstName.String
		user.LastName = lastName.String
		user.Username = username.String
		if createdAt.Valid {
			user.CreatedAt = createdAt.Time
		}
		return &user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}
