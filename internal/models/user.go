package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	CreatedAt time.Time
}

func (u *User) DisplayName() string {
	var parts []string
	if u.FirstName != "" {
		parts = append(parts, u.FirstName)
	}
	if u.LastName != "" {
		parts = append(parts, u.LastName)
	}
	if u.Username != "" {
		parts = append(parts, fmt.Sprintf("@%s", u.Username))
	}
	parts = append(parts, fmt.Sprintf("[%s]", u.ID))
	return strings.Join(parts, " ")
}

// TelegramUserID maps a Telegram account to the opaque user id used by every store.
func TelegramUserID(id int64) string {
	return fmt.Sprintf("tg:%d", id)
}
