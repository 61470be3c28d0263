package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-tracker-api/internal/nutrition"
)

func sampleReport() Report {
	loc := time.UTC
	meals := []nutrition.Meal{
		{ID: 1, Name: "Breakfast", DateTime: time.Date(2024, 3, 15, 8, 0, 0, 0, loc), Ingredients: []nutrition.Ingredient{
			{Name: "Eggs", Quantity: 2, Carbs: 1.1, Fat: 5.3, Protein: 6.3, Kcal: 74, MacroUnit: nutrition.PerUnit},
			{Name: "Oatmeal", Quantity: 0.5, Carbs: 12, Fat: 1.8, Protein: 2.4, Kcal: 68, MacroUnit: nutrition.Per100g},
		}},
		{ID: 2, Name: "Dinner", DateTime: time.Date(2024, 3, 14, 19, 0, 0, 0, loc), Ingredients: []nutrition.Ingredient{
			{Name: "Salmon", Quantity: 1.5, Fat: 13, Protein: 20, Kcal: 208, MacroUnit: nutrition.Per100g},
		}},
	}
	min := 100.0
	return Report{
		Days:     nutrition.GroupByDay(meals, time.Date(2024, 3, 15, 20, 0, 0, 0, loc), loc),
		Targets:  &nutrition.DailyTargets{Protein: &nutrition.Range{Min: &min}},
		Location: loc,
	}
}

func TestExportCSV(t *testing.T) {
	out, err := Export(sampleReport(), "CSV")
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"2024-03-15", "Breakfast", "08:00", "Eggs", "2", "per_unit", "2.2", "10.6", "12.6", "148.0"}, records[1])
	assert.Equal(t, "2024-03-14", records[3][0])
	assert.Equal(t, "312.0", records[3][9])
}

func TestExportCSVUsesReportLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// stored meals come back in UTC
	meals := []nutrition.Meal{{
		Name:        "Breakfast",
		DateTime:    time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC),
		Ingredients: []nutrition.Ingredient{{Name: "Oats", Quantity: 1, Kcal: 150}},
	}}
	r := Report{
		Days:     nutrition.GroupByDay(meals, time.Date(2024, 3, 15, 20, 0, 0, 0, ny), ny),
		Location: ny,
	}
	out, err := Export(r, "csv")
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-03-15", records[1][0])
	assert.Equal(t, "08:30", records[1][2])
}

func TestClock(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	at := time.Date(2024, 3, 15, 23, 5, 0, 0, time.UTC)
	assert.Equal(t, "08:05", Clock(at, tokyo))
	assert.Equal(t, "23:05", Clock(at, time.UTC))
}

func TestExportJSON(t *testing.T) {
	out, err := Export(sampleReport(), "json")
	require.NoError(t, err)

	var decoded struct {
		Days []struct {
			Date  string `json:"date"`
			Label string `json:"label"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded.Days, 2)
	assert.Equal(t, "Today", decoded.Days[0].Label)
	assert.Equal(t, "Yesterday", decoded.Days[1].Label)
}

func TestExportPDF(t *testing.T) {
	out, err := Export(sampleReport(), "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	empty, err := Export(Report{}, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF-")))
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := Export(sampleReport(), "xlsx")
	assert.Error(t, err)
	assert.Equal(t, "", ContentType("xlsx"))
	assert.Equal(t, "text/csv", ContentType("csv"))
}
