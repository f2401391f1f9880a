// Package report renders scored weeks for parents as chat messages and as
// spreadsheets.
package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/scoring"
)

// Week is one child's scored week.
type Week struct {
	ChildID   int64               `json:"child_id"`
	ChildName string              `json:"child_name"`
	Start     string              `json:"start"`
	End       string              `json:"end"`
	DailyMax  int                 `json:"daily_max"`
	Result    *scoring.WeekResult `json:"result"`
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
	time.Sunday:    "Sun",
}

func dayLabel(day string) string {
	t, err := time.Parse(models.DateLayout, day)
	if err != nil {
		return day
	}
	return weekdayNames[t.Weekday()] + " " + t.Format("02.01")
}

// FormatWeek renders w as a Telegram HTML message.
func FormatWeek(w *Week) string {
	var sb strings.Builder
	res := w.Result

	fmt.Fprintf(&sb, "📊 <b>Week %s – %s</b>\n", w.Start, w.End)
	fmt.Fprintf(&sb, "Child: %s\n\n", html.EscapeString(w.ChildName))

	for _, day := range res.Days {
		fmt.Fprintf(&sb, "  %s: %d/%d\n", dayLabel(day), res.DailyPoints[day], w.DailyMax)
	}

	fmt.Fprintf(&sb, "\nSubtotal: %d\n", res.Subtotal)
	if res.ExtraPoints > 0 {
		fmt.Fprintf(&sb, "Extra tasks: +%d\n", res.ExtraPoints)
	}
	if res.Penalty > 0 {
		fmt.Fprintf(&sb, "Room cleaning penalty: -%d\n", res.Penalty)
	}
	fmt.Fprintf(&sb, "<b>Total: %d of %d</b>\n", res.Total, res.MaxWeeklyPoints)
	fmt.Fprintf(&sb, "Pocket money: <b>%d%%</b>", res.MoneyPercentage)

	if res.NextTier != nil {
		fmt.Fprintf(&sb, "\n%d more points for %d%%", res.NextTier.Deficit, res.NextTier.Percentage)
	}
	return sb.String()
}

// FormatHistory renders several weeks of one child, most recent first.
func FormatHistory(childName string, weeks []*Week) string {
	parts := []string{fmt.Sprintf("📜 <b>History – %s</b>", html.EscapeString(childName))}
	for _, w := range weeks {
		parts = append(parts, FormatWeek(w))
	}
	return strings.Join(parts, "\n\n")
}
