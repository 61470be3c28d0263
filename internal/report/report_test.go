package report

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-tracker-api/internal/nutrition"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRender(t *testing.T) {
	loc := time.UTC
	meals := []nutrition.Meal{{
		Name:     "Breakfast",
		DateTime: time.Date(2024, 3, 15, 8, 5, 0, 0, loc),
		Ingredients: []nutrition.Ingredient{
			{Name: "Eggs", Quantity: 3, Carbs: 1.1, Fat: 5.3, Protein: 6.3, Kcal: 74},
		},
	}}
	days := nutrition.GroupByDay(meals, time.Date(2024, 3, 15, 9, 0, 0, 0, loc), loc)
	lo, hi := 100.0, 150.0
	targets := &nutrition.DailyTargets{Protein: &nutrition.Range{Min: &lo, Max: &hi}, Kcal: &nutrition.Range{Max: &hi}}

	out := Render(days, targets, loc)
	assert.Contains(t, out, "Today  2024-03-15")
	assert.Contains(t, out, "Below Protein target")
	assert.Contains(t, out, "Above Calories target")
	assert.Contains(t, out, "No Carbs target")
	assert.Contains(t, out, "08:05 Breakfast")
	assert.Contains(t, out, "222 kcal")
}

func TestRenderMealTimeInLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	meals := []nutrition.Meal{{Name: "Lunch", DateTime: time.Date(2024, 3, 15, 11, 15, 0, 0, time.UTC)}}
	days := nutrition.GroupByDay(meals, time.Date(2024, 3, 15, 18, 0, 0, 0, berlin), berlin)

	out := Render(days, nil, berlin)
	assert.Contains(t, out, "12:15 Lunch")
	assert.NotContains(t, out, "11:15")
}

func TestRenderEmpty(t *testing.T) {
	assert.Contains(t, Render(nil, nil, nil), "No meals yet")
}

func TestBar(t *testing.T) {
	half := Bar(nutrition.NewProgressView("Fat", nutrition.MacroProgress{Percentage: 50, Status: nutrition.WithinRange}))
	assert.Equal(t, barWidth/2, strings.Count(half, "█"))
	assert.True(t, strings.HasSuffix(half, "] "))

	over := Bar(nutrition.NewProgressView("Fat", nutrition.MacroProgress{Percentage: 140, Status: nutrition.AboveMax}))
	assert.Equal(t, barWidth, strings.Count(over, "█"))
	assert.True(t, strings.HasSuffix(over, "]+"))
}
