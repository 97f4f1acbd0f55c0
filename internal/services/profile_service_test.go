package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/ad/go-strategy-coach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileService(t *testing.T) *ProfileService {
	queue := setupTestQueue(t)
	return NewProfileService(db.NewProfileRepository(queue), db.NewDraftRepository(queue))
}

func validProfile() *models.BusinessProfile {
	return &models.BusinessProfile{
		UserID:       "tg:1",
		BusinessName: "  Corner Bakery ",
		Industry:     "Food & Beverage",
		City:         "Austin",
		BudgetRange:  "under-500",
		Goals:        "Get more customers",
	}
}

func TestValidateProfile(t *testing.T) {
	cases := map[string]func(p *models.BusinessProfile){
		"no user":      func(p *models.BusinessProfile) { p.UserID = "" },
		"blank name":   func(p *models.BusinessProfile) { p.BusinessName = "   " },
		"no industry":  func(p *models.BusinessProfile) { p.Industry = "" },
		"bad industry": func(p *models.BusinessProfile) { p.Industry = "Mining" },
		"bad type":     func(p *models.BusinessProfile) { p.BusinessType = "franchise" },
		"bad budget":   func(p *models.BusinessProfile) { p.BudgetRange = "a lot" },
		"bad goal":     func(p *models.BusinessProfile) { p.Goals = "World domination" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validProfile()
			mutate(p)
			assert.ErrorIs(t, ValidateProfile(p), ErrInvalidProfile)
		})
	}

	assert.NoError(t, ValidateProfile(validProfile()))
}

func TestProfileSaveAndGet(t *testing.T) {
	svc := newProfileService(t)
	ctx := context.Background()

	exists, err := svc.Exists(ctx, "tg:1")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := svc.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, svc.Save(ctx, validProfile()))

	got, err = svc.Get(ctx, "tg:1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Corner Bakery", got.BusinessName)
	assert.Equal(t, models.DefaultBusinessType, got.BusinessType)
	assert.Equal(t, "local business in Austin", got.Description())

	bad := validProfile()
	bad.Industry = "Mining"
	err = svc.Save(ctx, bad)
	require.True(t, errors.Is(err, ErrInvalidProfile))

	got, err = svc.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, "Food & Beverage", got.Industry, "rejected save leaves profile unchanged")
}

func TestProfileDrafts(t *testing.T) {
	svc := newProfileService(t)
	ctx := context.Background()

	draft := &models.ProfileDraft{UserID: "tg:1", CurrentState: "profile_city"}
	draft.Profile.BusinessName = "Corner Bakery"
	require.NoError(t, svc.SaveDraft(ctx, draft))

	got, err := svc.Draft(ctx, "tg:1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "profile_city", got.CurrentState)
	assert.Equal(t, "Corner Bakery", got.Profile.BusinessName)

	require.NoError(t, svc.ClearDraft(ctx, "tg:1"))
	got, err = svc.Draft(ctx, "tg:1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

type stubProfiles struct {
	exists bool
	err    error
}

func (s stubProfiles) Exists(context.Context, string) (bool, error) { return s.exists, s.err }

func TestViewResolver(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		userID  string
		edit    bool
		profile stubProfiles
		want    View
	}{
		{"signed out", "", false, stubProfiles{}, ViewAuth},
		{"signed out edit", "", true, stubProfiles{exists: true}, ViewAuth},
		{"no profile", "tg:1", false, stubProfiles{}, ViewProfile},
		{"profile", "tg:1", false, stubProfiles{exists: true}, ViewDashboard},
		{"edit", "tg:1", true, stubProfiles{exists: true}, ViewProfile},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := NewViewResolver(c.profile).Resolve(ctx, c.userID, c.edit)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}

	_, err := NewViewResolver(stubProfiles{err: errors.New("db down")}).Resolve(ctx, "tg:1", false)
	assert.Error(t, err)
}

func TestViewResolverWithRepository(t *testing.T) {
	queue := setupTestQueue(t)
	profiles := db.NewProfileRepository(queue)
	resolver := NewViewResolver(profiles)
	ctx := context.Background()

	view, err := resolver.Resolve(ctx, "tg:1", false)
	require.NoError(t, err)
	assert.Equal(t, ViewProfile, view)

	require.NoError(t, profiles.Upsert(ctx, validProfile()))
	view, err = resolver.Resolve(ctx, "tg:1", false)
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, view)
}
