package api

import (
	"time"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/models"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type recommendationResponse struct {
	ID             string    `json:"id"`
	WeekNumber     int       `json:"week_number"`
	Title          string    `json:"title"`
	WhyThisWorks   string    `json:"why_this_works,omitempty"`
	Steps          []string  `json:"steps"`
	CopyTemplates  string    `json:"copy_templates,omitempty"`
	EstimatedTime  string    `json:"estimated_time,omitempty"`
	ExpectedResult string    `json:"expected_result,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func newRecommendationResponse(rec *models.WeeklyRecommendation) recommendationResponse {
	steps := rec.Steps
	if steps == nil {
		steps = []string{}
	}
	return recommendationResponse{
		ID:             rec.ID,
		WeekNumber:     rec.WeekNumber,
		Title:          rec.Title,
		WhyThisWorks:   rec.WhyThisWorks,
		Steps:          steps,
		CopyTemplates:  rec.CopyTemplates,
		EstimatedTime:  rec.EstimatedTime,
		ExpectedResult: rec.ExpectedResult,
		CreatedAt:      rec.CreatedAt,
	}
}

type stepResponse struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type summaryResponse struct {
	CompletedCount int `json:"completed_count"`
	TotalSteps     int `json:"total_steps"`
	Percentage     int `json:"percentage"`
}

type progressResponse struct {
	RecommendationID string          `json:"recommendation_id"`
	Title            string          `json:"title"`
	Steps            []stepResponse  `json:"steps"`
	Summary          summaryResponse `json:"summary"`
}

func newProgressResponse(rec *models.WeeklyRecommendation, snap checklist.Snapshot) progressResponse {
	steps := make([]stepResponse, len(rec.Steps))
	for i, text := range rec.Steps {
		steps[i] = stepResponse{Index: i, Text: text, Completed: snap.Completed[i]}
	}
	return progressResponse{
		RecommendationID: rec.ID,
		Title:            rec.Title,
		Steps:            steps,
		Summary: summaryResponse{
			CompletedCount: snap.Summary.CompletedCount,
			TotalSteps:     snap.Summary.TotalSteps,
			Percentage:     snap.Summary.Percentage,
		},
	}
}

type toggleResponse struct {
	progressResponse
	Step      int  `json:"step"`
	Completed bool `json:"completed"`
	// Reverted is set when the change could not be saved and was undone.
	Reverted bool `json:"reverted"`
}

type historyResponse struct {
	ID             string `json:"id"`
	WeekNumber     int    `json:"week_number"`
	Title          string `json:"title"`
	CompletedCount int    `json:"completed_count"`
	TotalSteps     int    `json:"total_steps"`
	Percentage     int    `json:"percentage"`
}

type profileRequest struct {
	BusinessName string `json:"business_name"`
	Industry     string `json:"industry"`
	BusinessType string `json:"business_type"`
	City         string `json:"city"`
	BudgetRange  string `json:"budget_range"`
	Goals        string `json:"goals"`
}

type profileResponse struct {
	BusinessName string `json:"business_name"`
	Industry     string `json:"industry"`
	BusinessType string `json:"business_type"`
	City         string `json:"city"`
	BudgetRange  string `json:"budget_range,omitempty"`
	Goals        string `json:"goals,omitempty"`
}

func newProfileResponse(p *models.BusinessProfile) profileResponse {
	return profileResponse{
		BusinessName: p.BusinessName,
		Industry:     p.Industry,
		BusinessType: p.BusinessType,
		City:         p.City,
		BudgetRange:  p.BudgetRange,
		Goals:        p.Goals,
	}
}
