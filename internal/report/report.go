// Package report renders day groups and target progress for a terminal.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"macro-tracker-api/internal/nutrition"
)

const barWidth = 24

var (
	dayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#667eea")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Width(10)
	mealStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	trackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4b5563"))
)

// Render prints each day with totals, one progress bar per macro and the
// day's meals. Meal times are shown in loc, the zone the days were grouped in.
func Render(days []nutrition.DayGroup, targets *nutrition.DailyTargets, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	if len(days) == 0 {
		return mutedStyle.Render("No meals yet. Add your first meal to start tracking your nutrition!") + "\n"
	}
	var b strings.Builder
	for i, day := range days {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(dayStyle.Render(fmt.Sprintf("%s  %s", day.Label, day.Date)))
		b.WriteString("\n")

		p := targets.Progress(day.Totals).View()
		rows := []struct {
			label string
			unit  string
			view  nutrition.ProgressView
		}{
			{"Calories", "kcal", p.Kcal},
			{"Protein", "g", p.Protein},
			{"Carbs", "g", p.Carbs},
			{"Fat", "g", p.Fat},
		}
		for _, r := range rows {
			b.WriteString(progressLine(r.label, r.unit, r.view))
			b.WriteString("\n")
		}

		for _, meal := range day.Meals {
			t := meal.Totals()
			b.WriteString(fmt.Sprintf("  %s %s %s\n",
				mutedStyle.Render(meal.DateTime.In(loc).Format("15:04")),
				mealStyle.Render(meal.Name),
				mutedStyle.Render(fmt.Sprintf("%.0f kcal  P %.1fg  C %.1fg  F %.1fg", t.Kcal, t.Protein, t.Carbs, t.Fat))))
		}
	}
	return b.String()
}

func progressLine(label, unit string, v nutrition.ProgressView) string {
	value := fmt.Sprintf("%.1f%s", v.Current, unit)
	if unit == "kcal" {
		value = fmt.Sprintf("%.0f kcal", v.Current)
	}
	if v.Status == nutrition.NoTarget {
		return fmt.Sprintf("  %s %s %s", labelStyle.Render(label), value, mutedStyle.Render(v.Text))
	}
	return fmt.Sprintf("  %s %s %s %s", labelStyle.Render(label), Bar(v), value, mutedStyle.Render(v.Text))
}

// Bar draws a fixed-width bar filled to min(100, percentage) in the status
// colour, followed by "+" when the target is exceeded.
func Bar(v nutrition.ProgressView) string {
	filled := int(math.Round(math.Min(100, v.Percentage) / 100 * barWidth))
	filled = max(0, min(barWidth, filled))
	fill := lipgloss.NewStyle().Foreground(lipgloss.Color(v.Color)).Render(strings.Repeat("█", filled))
	bar := "[" + fill + trackStyle.Render(strings.Repeat("░", barWidth-filled)) + "]"
	if v.Overflow {
		bar += "+"
	} else {
		bar += " "
	}
	return bar
}
