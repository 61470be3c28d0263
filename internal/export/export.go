package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"macro-tracker-api/internal/nutrition"
)

// Report is the day-grouped view written by every format. Location is the
// zone the days were grouped in; meal clock times are printed in it.
type Report struct {
	Days     []nutrition.DayGroup    `json:"days"`
	Targets  *nutrition.DailyTargets `json:"targets,omitempty"`
	Location *time.Location          `json:"-"`
}

// Clock formats a meal time as HH:MM in loc, or time.Local when loc is nil.
func Clock(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15:04")
}

var contentTypes = map[string]string{
	"json": "application/json",
	"csv":  "text/csv",
	"pdf":  "application/pdf",
}

// ContentType returns the MIME type for format, or "" if unknown.
func ContentType(format string) string {
	return contentTypes[strings.ToLower(format)]
}

func Export(r Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(r, "", "  ")
	case "csv":
		return exportCSV(r)
	case "pdf":
		return exportPDF(r)
	default:
		return nil, fmt.Errorf("unknown format %s", format)
	}
}

var csvHeader = []string{"date", "meal", "time", "ingredient", "quantity", "unit", "carbs", "fat", "protein", "kcal"}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

// exportCSV writes one row per ingredient with its derived totals.
func exportCSV(r Report) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, day := range r.Days {
		for _, meal := range day.Meals {
			clock := Clock(meal.DateTime, r.Location)
			for _, ing := range meal.Ingredients {
				t := ing.Totals()
				row := []string{day.Date, meal.Name, clock, ing.Name, strconv.FormatFloat(ing.Quantity, 'f', -1, 64), string(ing.MacroUnit),
					num(t.Carbs), num(t.Fat), num(t.Protein), num(t.Kcal)}
				if err := w.Write(row); err != nil {
					return nil, err
				}
			}
		}
	}
	w.Flush()
	return b.Bytes(), w.Error()
}

func exportPDF(r Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Nutrition Report")
	pdf.Ln(12)

	if len(r.Days) == 0 {
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(40, 8, "No meals yet")
	}
	for _, day := range r.Days {
		pdf.SetFont("Arial", "B", 13)
		pdf.Cell(0, 8, fmt.Sprintf("%s (%s)", day.Label, day.Date))
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, fmt.Sprintf("Total: %.0f kcal | protein %.1fg | carbs %.1fg | fat %.1fg",
			day.Totals.Kcal, day.Totals.Protein, day.Totals.Carbs, day.Totals.Fat), "0", "L", false)

		if r.Targets != nil {
			p := r.Targets.Progress(day.Totals).View()
			for _, v := range []nutrition.ProgressView{p.Kcal, p.Protein, p.Carbs, p.Fat} {
				if v.Status == nutrition.NoTarget {
					continue
				}
				pdf.MultiCell(0, 5, fmt.Sprintf("  %s (%.0f%%)", v.Text, v.Percentage), "0", "L", false)
			}
		}

		for _, meal := range day.Meals {
			t := meal.Totals()
			pdf.SetFont("Arial", "B", 10)
			pdf.MultiCell(0, 6, fmt.Sprintf("%s  %s  -  %.0f kcal", Clock(meal.DateTime, r.Location), meal.Name, t.Kcal), "0", "L", false)
			pdf.SetFont("Arial", "", 9)
			for _, ing := range meal.Ingredients {
				it := ing.Totals()
				pdf.MultiCell(0, 5, fmt.Sprintf("    %s x %g: C %.1fg  F %.1fg  P %.1fg  %.0f kcal",
					ing.Name, ing.Quantity, it.Carbs, it.Fat, it.Protein, it.Kcal), "0", "L", false)
			}
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
