// Package sqlstore implements the repository interfaces on database/sql. The
// same queries serve SQLite and Postgres; placeholders are written as ? and
// rebound per dialect.
package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/chorebot/internal/models"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// daysBetween lists every calendar day from start to end inclusive.
func daysBetween(start, end string) ([]string, error) {
	from, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}

	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(models.DateLayout))
	}
	return days, nil
}
