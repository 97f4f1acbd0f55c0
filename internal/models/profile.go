package models

import (
	"fmt"
	"time"
)

type BusinessProfile struct {
	ID           string
	UserID       string
	BusinessName string
	Industry     string
	BusinessType string
	City         string
	BudgetRange  string
	Goals        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *BusinessProfile) Description() string {
	return fmt.Sprintf("%s business in %s", p.BusinessType, p.City)
}

// ProfileDraft holds a profile capture conversation between messages.
type ProfileDraft struct {
	UserID       string
	CurrentState string
	Profile      BusinessProfile
}
