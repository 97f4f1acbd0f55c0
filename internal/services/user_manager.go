package services

import (
	"context"

	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/ad/go-strategy-coach/internal/models"
	tgmodels "github.com/go-telegram/bot/models"
)

type UserManager struct {
	userRepo *db.UserRepository
}

func NewUserManager(userRepo *db.UserRepository) *UserManager {
	return &UserManager{userRepo: userRepo}
}

// RegisterTelegramUser stores or refreshes the account behind a Telegram
// sender and returns it with its opaque id.
func (m *UserManager) RegisterTelegramUser(ctx context.Context, from *tgmodels.User) (*models.User, error) {
	user := &models.User{
		ID:        models.TelegramUserID(from.ID),
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Username:  from.Username,
	}
	if err := m.userRepo.CreateOrUpdate(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *UserManager) Get(ctx context.Context, userID string) (*models.User, error) {
	return m.userRepo.GetByID(ctx, userID)
}
