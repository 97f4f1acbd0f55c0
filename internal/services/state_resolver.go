package services

import (
	"context"
)

type View string

const (
	ViewAuth      View = "auth"
	ViewProfile   View = "profile"
	ViewDashboard View = "dashboard"
)

type profileChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// ViewResolver decides which screen a user lands on.
type ViewResolver struct {
	profiles profileChecker
}

func NewViewResolver(profiles profileChecker) *ViewResolver {
	return &ViewResolver{profiles: profiles}
}

// Resolve returns ViewAuth without a user, ViewProfile when the profile is
// missing or an edit was asked for, and ViewDashboard otherwise.
func (r *ViewResolver) Resolve(ctx context.Context, userID string, editProfile bool) (View, error) {
	if userID == "" {
		return ViewAuth, nil
	}
	if editProfile {
		return ViewProfile, nil
	}

	exists, err := r.profiles.Exists(ctx, userID)
	if err != nil {
		return "", err
	}
	if !exists {
		return ViewProfile, nil
	}
	return ViewDashboard, nil
}
