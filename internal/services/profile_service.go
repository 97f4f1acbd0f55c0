package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/ad/go-strategy-coach/internal/models"
)

var ErrInvalidProfile = errors.New("invalid profile")

type ProfileService struct {
	profiles *db.ProfileRepository
	drafts   *db.DraftRepository
}

func NewProfileService(profiles *db.ProfileRepository, drafts *db.DraftRepository) *ProfileService {
	return &ProfileService{profiles: profiles, drafts: drafts}
}

// Get returns nil when the user has not filled in a profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.BusinessProfile, error) {
	return s.profiles.GetByUser(ctx, userID)
}

func (s *ProfileService) Exists(ctx context.Context, userID string) (bool, error) {
	return s.profiles.Exists(ctx, userID)
}

// Save validates and stores the profile, replacing any earlier one for the
// same user.
func (s *ProfileService) Save(ctx context.Context, p *models.BusinessProfile) error {
	p.BusinessName = strings.TrimSpace(p.BusinessName)
	p.City = strings.TrimSpace(p.City)
	if p.BusinessType == "" {
		p.BusinessType = models.DefaultBusinessType
	}
	if err := ValidateProfile(p); err != nil {
		return err
	}
	return s.profiles.Upsert(ctx, p)
}

func ValidateProfile(p *models.BusinessProfile) error {
	switch {
	case p.UserID == "":
		return fmt.Errorf("%w: user is required", ErrInvalidProfile)
	case strings.TrimSpace(p.BusinessName) == "":
		return fmt.Errorf("%w: business name is required", ErrInvalidProfile)
	case p.Industry == "":
		return fmt.Errorf("%w: industry is required", ErrInvalidProfile)
	case !models.IsIndustry(p.Industry):
		return fmt.Errorf("%w: unknown industry %q", ErrInvalidProfile, p.Industry)
	}
	if p.BusinessType != "" {
		if _, ok := models.FindOption(models.BusinessTypes, p.BusinessType); !ok {
			return fmt.Errorf("%w: unknown business type %q", ErrInvalidProfile, p.BusinessType)
		}
	}
	if p.BudgetRange != "" {
		if _, ok := models.FindOption(models.BudgetRanges, p.BudgetRange); !ok {
			return fmt.Errorf("%w: unknown budget range %q", ErrInvalidProfile, p.BudgetRange)
		}
	}
	if p.Goals != "" && !models.IsMainGoal(p.Goals) {
		return fmt.Errorf("%w: unknown goal %q", ErrInvalidProfile, p.Goals)
	}
	return nil
}

func (s *ProfileService) Draft(ctx context.Context, userID string) (*models.ProfileDraft, error) {
	return s.drafts.Get(ctx, userID)
}

func (s *ProfileService) SaveDraft(ctx context.Context, draft *models.ProfileDraft) error {
	return s.drafts.Save(ctx, draft)
}

func (s *ProfileService) ClearDraft(ctx context.Context, userID string) error {
	return s.drafts.Clear(ctx, userID)
}
