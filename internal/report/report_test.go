package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Kerhoff/chorebot/internal/scoring"
)

func sampleWeek() *Week {
	daily := map[string]scoring.KeySet{}
	for _, d := range []string{"2025-01-06", "2025-01-07", "2025-01-08", "2025-01-09", "2025-01-10", "2025-01-11", "2025-01-12"} {
		daily[d] = scoring.NewKeySet("shower", "teeth", "bed")
	}
	res := scoring.WeeklyResult(scoring.WeekInput{
		Daily:           daily,
		DeepCleanDone:   false,
		Active:          []string{"shower", "teeth", "bed", "tidy"},
		HygieneRequired: true,
		ExtraPoints:     map[string]int{"2025-01-08": 2},
		MaxWeeklyPoints: scoring.MaxWeeklyPoints(4),
	})
	return &Week{ChildID: 1, ChildName: "Ann <3", Start: "2025-01-06", End: "2025-01-12", DailyMax: 4, Result: res}
}

func TestFormatWeek(t *testing.T) {
	text := FormatWeek(sampleWeek())

	assert.Contains(t, text, "Child: Ann &lt;3")
	assert.Contains(t, text, "Mon 06.01: 3/4")
	assert.Contains(t, text, "Sun 12.01: 3/4")
	assert.Contains(t, text, "Extra tasks: +2")
	assert.Contains(t, text, "Room cleaning penalty: -5")
	assert.Contains(t, text, "<b>Total: 18 of 28</b>")
	assert.Contains(t, text, "Pocket money: <b>40%</b>")
}

func TestFormatHistory(t *testing.T) {
	text := FormatHistory("Ben", []*Week{sampleWeek(), sampleWeek()})
	assert.True(t, strings.HasPrefix(text, "📜 <b>History – Ben</b>"))
	assert.Equal(t, 2, strings.Count(text, "📊"))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []*Week{sampleWeek()}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Child", rows[0][0])
	assert.Equal(t, []string{"Ann <3", "2025-01-06", "2025-01-12", "3", "3", "3", "3", "3", "3", "3", "21", "2", "5", "18", "28", "40"}, rows[1])
}
