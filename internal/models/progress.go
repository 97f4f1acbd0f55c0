package models

import "time"

type ProgressRecord struct {
	ID               string
	UserID           string
	RecommendationID string
	StepIndex        int
	Completed        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
