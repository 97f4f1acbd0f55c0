package db

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/ad/go-strategy-coach/internal/models"
)

func TestRecommendationRepository_LatestAndList(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewRecommendationRepository(queue)
	ctx := context.Background()

	for week := 1; week <= 3; week++ {
		if err := repo.Create(ctx, &models.WeeklyRecommendation{
			UserID:     "u1",
			WeekNumber: week,
			Title:      "Week",
			Steps:      []string{"one", "two"},
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, &models.WeeklyRecommendation{UserID: "u2", WeekNumber: 9, Title: "Other"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	latest, err := repo.Latest(ctx, "u1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.WeekNumber != 3 {
		t.Fatalf("expected week 3, got %+v", latest)
	}
	if !reflect.DeepEqual(latest.Steps, []string{"one", "two"}) {
		t.Errorf("unexpected steps %#v", latest.Steps)
	}

	list, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(list))
	}
	for i, want := range []int{3, 2, 1} {
		if list[i].WeekNumber != want {
			t.Errorf("position %d: expected week %d, got %d", i, want, list[i].WeekNumber)
		}
	}

	none, err := repo.Latest(ctx, "nobody")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil for user without recommendations")
	}
}

func TestRecommendationRepository_GetForUserChecksOwner(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewRecommendationRepository(queue)
	ctx := context.Background()

	rec := &models.WeeklyRecommendation{UserID: "u1", WeekNumber: 1, Title: "Mine"}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetForUser(ctx, "u1", rec.ID)
	if err != nil || got == nil {
		t.Fatalf("GetForUser owner: %v, %+v", err, got)
	}

	other, err := repo.GetForUser(ctx, "u2", rec.ID)
	if err != nil {
		t.Fatalf("GetForUser other: %v", err)
	}
	if other != nil {
		t.Error("recommendation must not be visible to another user")
	}
}

func TestRecommendationRepository_NormalizesStringEncodedSteps(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewRecommendationRepository(queue)
	ctx := context.Background()

	_, err := queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO weekly_recommendations (id, user_id, week_number, title, step_by_step_actions, created_at)
			VALUES ('legacy', 'u1', 1, 'Legacy', ?, ?)
		`, `"[\"Call five customers\",\"Ask for reviews\"]"`, time.Now())
		return nil, err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := repo.GetForUser(ctx, "u1", "legacy")
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	want := []string{"Call five customers", "Ask for reviews"}
	if !reflect.DeepEqual(rec.Steps, want) {
		t.Errorf("expected %#v, got %#v", want, rec.Steps)
	}
}

func TestStrategyRepository_OrderedByWeek(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewStrategyRepository(queue)
	ctx := context.Background()

	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, &models.MarketingStrategy{
			UserID:  "u1",
			Title:   "Strategy",
			Content: "content",
			WeekOf:  base.AddDate(0, 0, 7*i),
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 strategies, got %d", len(list))
	}
	if !list[0].WeekOf.After(list[2].WeekOf) {
		t.Errorf("expected newest week first, got %v then %v", list[0].WeekOf, list[2].WeekOf)
	}
}
