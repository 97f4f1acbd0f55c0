package models

import "time"

// WeeklyRecommendation is one generated weekly strategy with its ordered action steps.
type WeeklyRecommendation struct {
	ID             string
	UserID         string
	WeekNumber     int
	Title          string
	WhyThisWorks   string
	Steps          []string
	CopyTemplates  string
	EstimatedTime  string
	ExpectedResult string
	CreatedAt      time.Time
}

type MarketingStrategy struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	WeekOf    time.Time
	CreatedAt time.Time
}
