package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/ad/go-strategy-coach/internal/models"
)

func TestProgressRepository_InsertFindUpdate(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewProgressRepository(queue)
	ctx := context.Background()

	missing, err := repo.FindProgress(ctx, "u1", "rec-1", 0)
	if err != nil {
		t.Fatalf("FindProgress on empty table: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no record, got %+v", missing)
	}

	record := &models.ProgressRecord{
		UserID:           "u1",
		RecommendationID: "rec-1",
		StepIndex:        0,
		Completed:        true,
	}
	if err := repo.InsertProgress(ctx, record); err != nil {
		t.Fatalf("InsertProgress: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected generated record id")
	}

	found, err := repo.FindProgress(ctx, "u1", "rec-1", 0)
	if err != nil {
		t.Fatalf("FindProgress: %v", err)
	}
	if found == nil || found.ID != record.ID || !found.Completed {
		t.Fatalf("unexpected record %+v", found)
	}

	later := time.Now().Add(time.Minute)
	if err := repo.UpdateProgress(ctx, record.ID, false, later); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	found, err = repo.FindProgress(ctx, "u1", "rec-1", 0)
	if err != nil {
		t.Fatalf("FindProgress after update: %v", err)
	}
	if found.Completed {
		t.Error("expected completed=false after update")
	}
	if found.UpdatedAt.Before(record.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v < %v", found.UpdatedAt, record.UpdatedAt)
	}
}

func TestProgressRepository_UpdateMissingRecord(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewProgressRepository(queue)

	err := repo.UpdateProgress(context.Background(), "does-not-exist", true, time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestProgressRepository_NaturalKeyIsUnique(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewProgressRepository(queue)
	ctx := context.Background()

	first := &models.ProgressRecord{UserID: "u1", RecommendationID: "rec-1", StepIndex: 2, Completed: true}
	if err := repo.InsertProgress(ctx, first); err != nil {
		t.Fatalf("InsertProgress: %v", err)
	}

	dup := &models.ProgressRecord{UserID: "u1", RecommendationID: "rec-1", StepIndex: 2, Completed: false}
	err := repo.InsertProgress(ctx, dup)
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	records, err := repo.ListProgress(ctx, "u1", "rec-1")
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
}

func TestProgressRepository_ListScopedToPair(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewProgressRepository(queue)
	ctx := context.Background()

	seed := []*models.ProgressRecord{
		{UserID: "u1", RecommendationID: "rec-1", StepIndex: 2, Completed: true},
		{UserID: "u1", RecommendationID: "rec-1", StepIndex: 0, Completed: true},
		{UserID: "u1", RecommendationID: "rec-2", StepIndex: 0, Completed: true},
		{UserID: "u2", RecommendationID: "rec-1", StepIndex: 1, Completed: true},
	}
	for _, r := range seed {
		if err := repo.InsertProgress(ctx, r); err != nil {
			t.Fatalf("InsertProgress: %v", err)
		}
	}

	records, err := repo.ListProgress(ctx, "u1", "rec-1")
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].StepIndex != 0 || records[1].StepIndex != 2 {
		t.Errorf("expected records ordered by step, got %d, %d", records[0].StepIndex, records[1].StepIndex)
	}

	empty, err := repo.ListProgress(ctx, "nobody", "rec-1")
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}
}

func TestProgressRepository_CountCompleted(t *testing.T) {
	queue := setupTestQueue(t)
	repo := NewProgressRepository(queue)
	ctx := context.Background()

	for i, done := range []bool{true, false, true, true} {
		if err := repo.InsertProgress(ctx, &models.ProgressRecord{
			UserID: "u1", RecommendationID: "rec-1", StepIndex: i, Completed: done,
		}); err != nil {
			t.Fatalf("InsertProgress: %v", err)
		}
	}

	count, err := repo.CountCompleted(ctx, "u1", "rec-1", 4)
	if err != nil {
		t.Fatalf("CountCompleted: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 completed, got %d", count)
	}

	// Steps beyond the current list length are stale and ignored.
	count, err = repo.CountCompleted(ctx, "u1", "rec-1", 3)
	if err != nil {
		t.Fatalf("CountCompleted: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 completed within 3 steps, got %d", count)
	}
}
