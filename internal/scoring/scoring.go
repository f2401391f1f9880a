// Package scoring turns a week of approved completions into points and a
// pocket-money percentage. It performs no I/O.
package scoring

import (
	"math"
	"sort"
)

const (
	// HygieneKey is the task that gates a whole day: without it the day
	// scores nothing.
	HygieneKey = "shower"

	// DeepCleanKey is the weekly task checked on the last day of the week.
	DeepCleanKey = "room_clean"

	// DeepCleanPenalty is subtracted when the deep clean was skipped.
	DeepCleanPenalty = 5

	PointsPerTask = 1
	DaysPerWeek   = 7
)

// Tier maps a share of the child's maximum weekly points to a percentage.
type Tier struct {
	Fraction   float64
	Percentage int
}

// Tiers are ordered from highest to lowest.
var Tiers = []Tier{
	{Fraction: 0.892, Percentage: 100},
	{Fraction: 0.75, Percentage: 70},
	{Fraction: 0.625, Percentage: 40},
}

// KeySet is a set of task keys.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// DailyPoints scores one day: one point per completed active task, or zero
// when hygiene is required and missing.
func DailyPoints(completed KeySet, active []string, hygieneRequired bool) int {
	if hygieneRequired && !completed.Has(HygieneKey) {
		return 0
	}
	points := 0
	for _, key := range active {
		if completed.Has(key) {
			points += PointsPerTask
		}
	}
	return points
}

// MaxWeeklyPoints is the best possible week for a child with the given
// number of active daily tasks.
func MaxWeeklyPoints(activeDaily int) int {
	return activeDaily * PointsPerTask * DaysPerWeek
}

// WeekInput holds everything needed to score a week. Daily must contain
// every day of the week, empty days included.
type WeekInput struct {
	Daily           map[string]KeySet
	DeepCleanDone   bool
	Active          []string
	HygieneRequired bool
	ExtraPoints     map[string]int
	MaxWeeklyPoints int
}

// WeekResult is a scored week.
type WeekResult struct {
	Days            []string       `json:"days"`
	DailyPoints     map[string]int `json:"daily_points"`
	Subtotal        int            `json:"subtotal"`
	ExtraPoints     int            `json:"extra_points"`
	Penalty         int            `json:"penalty"`
	Total           int            `json:"total"`
	MaxWeeklyPoints int            `json:"max_weekly_points"`
	MoneyPercentage int            `json:"money_percentage"`
	NextTier        *NextTier      `json:"next_tier,omitempty"`
}

// NextTier is the distance to the next percentage step.
type NextTier struct {
	Deficit    int `json:"deficit"`
	Percentage int `json:"percentage"`
}

// WeeklyResult sums the week's daily points and bonus points, subtracts the
// deep-clean penalty and looks up the reward tier.
func WeeklyResult(in WeekInput) *WeekResult {
	res := &WeekResult{
		DailyPoints:     make(map[string]int, len(in.Daily)),
		MaxWeeklyPoints: in.MaxWeeklyPoints,
	}

	for day, keys := range in.Daily {
		pts := DailyPoints(keys, in.Active, in.HygieneRequired)
		res.DailyPoints[day] = pts
		res.Subtotal += pts
		res.Days = append(res.Days, day)
	}
	sort.Strings(res.Days)

	for _, pts := range in.ExtraPoints {
		res.ExtraPoints += pts
	}
	if !in.DeepCleanDone {
		res.Penalty = DeepCleanPenalty
	}

	res.Total = max(res.Subtotal+res.ExtraPoints-res.Penalty, 0)
	res.MoneyPercentage = MoneyPercentage(res.Total, in.MaxWeeklyPoints)
	if deficit, pct, ok := PointsToNextTier(res.Total, in.MaxWeeklyPoints); ok {
		res.NextTier = &NextTier{Deficit: deficit, Percentage: pct}
	}
	return res
}

// threshold is the fewest points that reach frac of maxPoints.
func threshold(frac float64, maxPoints int) int {
	return int(math.Ceil(frac * float64(maxPoints)))
}

// MoneyPercentage returns the percentage of the first tier whose threshold
// total reaches.
func MoneyPercentage(total, maxPoints int) int {
	if maxPoints <= 0 {
		return 0
	}
	for _, tier := range Tiers {
		if total >= threshold(tier.Fraction, maxPoints) {
			return tier.Percentage
		}
	}
	return 0
}

// PointsToNextTier returns how many points are missing for the lowest tier
// above the current one. ok is false at the top tier.
func PointsToNextTier(total, maxPoints int) (deficit, percentage int, ok bool) {
	if maxPoints <= 0 {
		return 0, 0, false
	}
	current := MoneyPercentage(total, maxPoints)
	for i := len(Tiers) - 1; i >= 0; i-- {
		tier := Tiers[i]
		if tier.Percentage <= current {
			continue
		}
		if d := threshold(tier.Fraction, maxPoints) - total; d > 0 {
			return d, tier.Percentage, true
		}
	}
	return 0, 0, false
}
