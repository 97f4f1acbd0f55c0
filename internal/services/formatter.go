package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ad/go-strategy-coach/internal/checklist"
	"github.com/ad/go-strategy-coach/internal/models"
)

// Text produced here is sent with HTML parse mode; user content is escaped.

func FormatBold(text string) string {
	return fmt.Sprintf("<b>%s</b>", html.EscapeString(text))
}

func FormatItalic(text string) string {
	return fmt.Sprintf("<i>%s</i>", html.EscapeString(text))
}

const progressBarWidth = 10

// ProgressBar renders a percentage as a fixed-width bar.
func ProgressBar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := (percent*progressBarWidth + 50) / 100
	return strings.Repeat("▓", filled) + strings.Repeat("░", progressBarWidth-filled)
}

func FormatSummary(s checklist.Summary) string {
	return fmt.Sprintf("%s %d%% (%d/%d)", ProgressBar(s.Percentage), s.Percentage, s.CompletedCount, s.TotalSteps)
}

func FormatRecommendation(rec *models.WeeklyRecommendation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎯 This week's focus · week %d\n", rec.WeekNumber))
	sb.WriteString(FormatBold(rec.Title))
	sb.WriteString("\n")

	if rec.WhyThisWorks != "" {
		sb.WriteString("\n💡 ")
		sb.WriteString(FormatBold("Why this works"))
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(rec.WhyThisWorks))
		sb.WriteString("\n")
	}
	if rec.CopyTemplates != "" {
		sb.WriteString("\n📝 ")
		sb.WriteString(FormatBold("Ready-to-use copy"))
		sb.WriteString("\n<pre>")
		sb.WriteString(html.EscapeString(rec.CopyTemplates))
		sb.WriteString("</pre>\n")
	}
	if rec.EstimatedTime != "" {
		sb.WriteString(fmt.Sprintf("\n⏱ %s", html.EscapeString(rec.EstimatedTime)))
	}
	if rec.ExpectedResult != "" {
		sb.WriteString(fmt.Sprintf("\n📈 %s", html.EscapeString(rec.ExpectedResult)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatChecklist is the text above the step buttons.
func FormatChecklist(rec *models.WeeklyRecommendation, summary checklist.Summary) string {
	if summary.TotalSteps == 0 {
		return FormatBold("Action steps") + "\nNo steps for this week."
	}
	return fmt.Sprintf("%s · %s\n%s",
		FormatBold("Action steps"),
		html.EscapeString(rec.Title),
		FormatSummary(summary))
}

func FormatHistory(items []HistoryItem) string {
	if len(items) == 0 {
		return "No recommendations yet. Your first weekly plan will appear here."
	}

	var sb strings.Builder
	sb.WriteString(FormatBold("Your weekly plans"))
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("\n\nWeek %d · %s\n%s %d%%",
			item.Recommendation.WeekNumber,
			html.EscapeString(item.Recommendation.Title),
			ProgressBar(item.Percentage),
			item.Percentage))
	}
	return sb.String()
}

func FormatDashboard(d *Dashboard) string {
	var sb strings.Builder
	name := d.BusinessName
	if name == "" {
		name = "your business"
	}
	sb.WriteString(fmt.Sprintf("📊 Marketing dashboard for %s\n", FormatBold(name)))

	if d.Current != nil {
		sb.WriteString(fmt.Sprintf("\nThis week: %s (/focus)\n", html.EscapeString(d.Current.Title)))
	} else {
		sb.WriteString("\nYour first weekly plan is being prepared.\n")
	}

	if len(d.Strategies) > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatBold("Strategies"))
		for _, s := range d.Strategies {
			sb.WriteString(fmt.Sprintf("\n• %s %s", FormatWeekOf(s.WeekOf), html.EscapeString(s.Title)))
		}
	}
	return sb.String()
}

func FormatWeekOf(t time.Time) string {
	return t.Format("Jan 2")
}

func FormatProfile(p *models.BusinessProfile) string {
	lines := []string{
		FormatBold(p.BusinessName),
		"Industry: " + html.EscapeString(p.Industry),
		"Type: " + optionLabel(models.BusinessTypes, p.BusinessType),
	}
	if p.City != "" {
		lines = append(lines, "City: "+html.EscapeString(p.City))
	}
	if p.BudgetRange != "" {
		lines = append(lines, "Budget: "+optionLabel(models.BudgetRanges, p.BudgetRange))
	}
	if p.Goals != "" {
		lines = append(lines, "Goal: "+html.EscapeString(p.Goals))
	}
	return strings.Join(lines, "\n")
}

func optionLabel(options []models.Option, value string) string {
	if opt, ok := models.FindOption(options, value); ok {
		return html.EscapeString(opt.Label)
	}
	return html.EscapeString(value)
}
