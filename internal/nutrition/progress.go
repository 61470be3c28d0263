package nutrition

import (
	"math"
	"strconv"
)

type ProgressStatus string

const (
	BelowMin    ProgressStatus = "below_min"
	AboveMax    ProgressStatus = "above_max"
	WithinRange ProgressStatus = "within_range"
	NoTarget    ProgressStatus = "no_target"
)

type MacroProgress struct {
	Current    float64        `json:"current"`
	Min        *float64       `json:"min,omitempty"`
	Max        *float64       `json:"max,omitempty"`
	Percentage float64        `json:"percentage"`
	Status     ProgressStatus `json:"status"`
}

const (
	overflowCap   = 50  // extra percent shown past max
	minOnlyCap    = 120 // ceiling once a min-only target is met
	minOnlyWeight = 20
)

// CalculateProgress maps a value against an optional target range to a
// status and a bar percentage. The percentage stays in [0, 100] unless the
// target is exceeded, where it grows to at most 150 (above max) or 120
// (min-only target met).
func CalculateProgress(current float64, target *Range) MacroProgress {
	p := MacroProgress{Current: current, Status: NoTarget}
	if target.empty() {
		return p
	}
	p.Min, p.Max = target.Min, target.Max

	switch {
	case target.Min != nil && target.Max != nil:
		lo, hi := *target.Min, *target.Max
		switch {
		case current < lo:
			p.Status, p.Percentage = BelowMin, clamp(ratio(current, lo)*100)
		case current > hi:
			p.Status, p.Percentage = AboveMax, overflow(current, hi)
		case hi == lo:
			p.Status, p.Percentage = WithinRange, 100
		default:
			p.Status, p.Percentage = WithinRange, clamp(ratio(current-lo, hi-lo)*100)
		}
	case target.Min != nil:
		lo := *target.Min
		if current < lo {
			p.Status, p.Percentage = BelowMin, clamp(ratio(current, lo)*100)
		} else {
			p.Status = WithinRange
			p.Percentage = math.Min(minOnlyCap, 100+ratio(current-lo, lo)*minOnlyWeight)
		}
	default:
		hi := *target.Max
		if current > hi {
			p.Status, p.Percentage = AboveMax, overflow(current, hi)
		} else {
			p.Status, p.Percentage = WithinRange, clamp(ratio(current, hi)*100)
		}
	}
	return p
}

func overflow(current, max float64) float64 {
	return 100 + math.Min(overflowCap, ratio(current-max, max)*100)
}

// ratio divides without producing NaN: 0/0 is 0 and x/0 saturates.
func ratio(a, b float64) float64 {
	if b == 0 {
		switch {
		case a > 0:
			return math.Inf(1)
		case a < 0:
			return math.Inf(-1)
		}
		return 0
	}
	return a / b
}

func clamp(pct float64) float64 {
	return math.Max(0, math.Min(100, pct))
}

func ProgressColor(status ProgressStatus) string {
	switch status {
	case BelowMin:
		return "#ffffff"
	case AboveMax:
		return "#fbbf24"
	case WithinRange:
		return "#34d399"
	default:
		return "#e5e7eb"
	}
}

func ProgressText(status ProgressStatus, macro string) string {
	switch status {
	case BelowMin:
		return "Below " + macro + " target"
	case AboveMax:
		return "Above " + macro + " target"
	case WithinRange:
		return macro + " target met"
	default:
		return "No " + macro + " target"
	}
}

// BarWidth caps the visual width at 100%; ShowOverflow reports the excess.
func BarWidth(percentage float64) string {
	return strconv.FormatFloat(math.Min(100, percentage), 'f', -1, 64) + "%"
}

func ShowOverflow(percentage float64) bool {
	return percentage > 100
}

// ProgressView is MacroProgress plus the presentation fields a client needs
// to draw the bar.
type ProgressView struct {
	MacroProgress
	Color    string `json:"color"`
	Text     string `json:"text"`
	Width    string `json:"width"`
	Overflow bool   `json:"overflow"`
}

func NewProgressView(macro string, p MacroProgress) ProgressView {
	return ProgressView{
		MacroProgress: p,
		Color:         ProgressColor(p.Status),
		Text:          ProgressText(p.Status, macro),
		Width:         BarWidth(p.Percentage),
		Overflow:      ShowOverflow(p.Percentage),
	}
}

type TargetsProgressView struct {
	Carbs   ProgressView `json:"carbs"`
	Fat     ProgressView `json:"fat"`
	Protein ProgressView `json:"protein"`
	Kcal    ProgressView `json:"kcal"`
}

func (t TargetsProgress) View() TargetsProgressView {
	return TargetsProgressView{
		Carbs:   NewProgressView("Carbs", t.Carbs),
		Fat:     NewProgressView("Fat", t.Fat),
		Protein: NewProgressView("Protein", t.Protein),
		Kcal:    NewProgressView("Calories", t.Kcal),
	}
}
