package models

type Option struct {
	Value string
	Label string
}

var Industries = []string{
	"Retail",
	"Food & Beverage",
	"Services",
	"E-commerce",
	"Healthcare",
	"Education",
	"Technology",
	"Real Estate",
	"Consulting",
	"Other",
}

var MainGoals = []string{
	"Get more customers",
	"Increase sales",
	"Build brand awareness",
	"Get more leads",
	"Engage customers online",
}

const DefaultBusinessType = "local"

var BusinessTypes = []Option{
	{Value: "local", Label: "Local (Physical Location)"},
	{Value: "online", Label: "Online (Digital)"},
	{Value: "service", Label: "Service-Based"},
}

var BudgetRanges = []Option{
	{Value: "under-500", Label: "Under $500"},
	{Value: "500-1000", Label: "$500 - $1,000"},
	{Value: "1000-2500", Label: "$1,000 - $2,500"},
	{Value: "2500-5000", Label: "$2,500 - $5,000"},
	{Value: "5000-plus", Label: "$5,000+"},
}

func IsIndustry(v string) bool {
	for _, i := range Industries {
		if i == v {
			return true
		}
	}
	return false
}

func IsMainGoal(v string) bool {
	for _, g := range MainGoals {
		if g == v {
			return true
		}
	}
	return false
}

func FindOption(options []Option, value string) (Option, bool) {
	for _, o := range options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}
