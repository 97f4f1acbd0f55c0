package fsm

// Profile capture conversation states, in the order they are asked.
const (
	StateProfileName     = "profile_name"
	StateProfileIndustry = "profile_industry"
	StateProfileType     = "profile_type"
	StateProfileCity     = "profile_city"
	StateProfileBudget   = "profile_budget"
	StateProfileGoal     = "profile_goal"
	StateProfileDone     = "profile_done"
)

var profileOrder = []string{
	StateProfileName,
	StateProfileIndustry,
	StateProfileType,
	StateProfileCity,
	StateProfileBudget,
	StateProfileGoal,
	StateProfileDone,
}

// NextProfileState returns the state after current, or StateProfileDone.
func NextProfileState(current string) string {
	for i, s := range profileOrder[:len(profileOrder)-1] {
		if s == current {
			return profileOrder[i+1]
		}
	}
	return StateProfileDone
}

func IsProfileState(state string) bool {
	for _, s := range profileOrder[:len(profileOrder)-1] {
		if s == state {
			return true
		}
	}
	return false
}

// ExpectsText reports whether the state is answered by typing rather than a button.
func ExpectsText(state string) bool {
	return state == StateProfileName || state == StateProfileCity
}
