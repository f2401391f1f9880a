package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/chorebot/internal/clock"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/report"
	"github.com/Kerhoff/chorebot/internal/scoring"
)

// ItemStatus is where a checklist item or extra task stands for one day.
type ItemStatus string

const (
	StatusTodo    ItemStatus = "todo"
	StatusPending ItemStatus = "pending"
	StatusDone    ItemStatus = "done"
)

// DayItem is a checklist item with its status.
type DayItem struct {
	Key    string           `json:"key"`
	Label  string           `json:"label"`
	Group  models.TaskGroup `json:"group"`
	Status ItemStatus       `json:"status"`
}

// DayExtra is an extra task with its status.
type DayExtra struct {
	*models.ExtraTask
	Status ItemStatus `json:"status"`
}

// DayView is a child's checklist for one day.
type DayView struct {
	ChildID        int64       `json:"child_id"`
	Date           string      `json:"date"`
	Items          []*DayItem  `json:"items"`
	Extras         []*DayExtra `json:"extras"`
	Points         int         `json:"points"`
	MaxPoints      int         `json:"max_points"`
	ExtraPoints    int         `json:"extra_points"`
	HygieneMissing bool        `json:"hygiene_missing"`
}

func isLastDayOfWeek(date string) bool {
	t, err := time.Parse(models.DateLayout, date)
	return err == nil && t.Weekday() == time.Sunday
}

// DayView builds the child's checklist for date. Weekly items appear only on
// the last day of the week, when they are scored.
func (s *Service) DayView(ctx context.Context, childID int64, date string) (*DayView, error) {
	items, err := s.Catalog.ListEnabled(ctx, childID)
	if err != nil {
		return nil, err
	}
	rules, err := s.Catalog.ActiveRules(ctx, childID)
	if err != nil {
		return nil, err
	}

	approvedKeys, err := s.Completions.KeysForDate(ctx, childID, date, true)
	if err != nil {
		return nil, err
	}
	pendingKeys, err := s.Completions.KeysForDate(ctx, childID, date, false)
	if err != nil {
		return nil, err
	}
	approved := scoring.NewKeySet(approvedKeys...)
	pending := scoring.NewKeySet(pendingKeys...)

	view := &DayView{
		ChildID:   childID,
		Date:      date,
		Items:     []*DayItem{},
		Extras:    []*DayExtra{},
		Points:    scoring.DailyPoints(approved, rules.Daily, rules.HygieneRequired),
		MaxPoints: len(rules.Daily) * scoring.PointsPerTask,
	}
	view.HygieneMissing = rules.HygieneRequired && !approved.Has(scoring.HygieneKey)

	lastDay := isLastDayOfWeek(date)
	for _, item := range items {
		if !item.Group.IsDaily() && !lastDay {
			continue
		}
		status := StatusTodo
		switch {
		case approved.Has(item.TaskKey):
			status = StatusDone
		case pending.Has(item.TaskKey):
			status = StatusPending
		}
		view.Items = append(view.Items, &DayItem{
			Key:    item.TaskKey,
			Label:  item.Label,
			Group:  item.Group,
			Status: status,
		})
	}

	extras, err := s.Extras.ListForDate(ctx, childID, date)
	if err != nil {
		return nil, err
	}
	for _, extra := range extras {
		status := StatusTodo
		switch {
		case extra.IsDone():
			status = StatusDone
			view.ExtraPoints += extra.Points
		case extra.IsPending():
			status = StatusPending
		}
		view.Extras = append(view.Extras, &DayExtra{ExtraTask: extra, Status: status})
	}

	return view, nil
}

// WeekReport scores the Monday-based week containing day for a child.
func (s *Service) WeekReport(ctx context.Context, child *models.User, day time.Time) (*report.Week, error) {
	start, end := clock.WeekRange(day)

	rules, err := s.Catalog.ActiveRules(ctx, child.ID)
	if err != nil {
		return nil, err
	}
	byDay, err := s.Completions.ApprovedKeysForRange(ctx, child.ID, start, end)
	if err != nil {
		return nil, err
	}
	extraPoints, err := s.Extras.PointsForRange(ctx, child.ID, start, end)
	if err != nil {
		return nil, err
	}

	daily := make(map[string]scoring.KeySet, len(byDay))
	for date, keys := range byDay {
		daily[date] = scoring.NewKeySet(keys...)
	}
	if len(daily) != scoring.DaysPerWeek {
		return nil, fmt.Errorf("week %s has %d days", start, len(daily))
	}

	deepCleanDone := !rules.HasDeepClean || daily[end].Has(scoring.DeepCleanKey)

	result := scoring.WeeklyResult(scoring.WeekInput{
		Daily:           daily,
		DeepCleanDone:   deepCleanDone,
		Active:          rules.Daily,
		HygieneRequired: rules.HygieneRequired,
		ExtraPoints:     extraPoints,
		MaxWeeklyPoints: rules.MaxWeeklyPoints(),
	})

	return &report.Week{
		ChildID:   child.ID,
		ChildName: child.Name,
		Start:     start,
		End:       end,
		DailyMax:  len(rules.Daily) * scoring.PointsPerTask,
		Result:    result,
	}, nil
}

// CurrentWeek scores the week in progress.
func (s *Service) CurrentWeek(ctx context.Context, child *models.User) (*report.Week, error) {
	return s.WeekReport(ctx, child, s.clock.Now())
}

// History scores the weeks before the current one, most recent first.
func (s *Service) History(ctx context.Context, child *models.User, weeks int) ([]*report.Week, error) {
	if weeks <= 0 {
		weeks = HistoryWeeks
	}

	current := clock.WeekStart(s.clock.Now())
	history := make([]*report.Week, 0, weeks)
	for w := 1; w <= weeks; w++ {
		week, err := s.WeekReport(ctx, child, current.AddDate(0, 0, -7*w))
		if err != nil {
			return nil, err
		}
		history = append(history, week)
	}
	return history, nil
}

// FamilyWeek scores the current week of every child of the parent's family.
func (s *Service) FamilyWeek(ctx context.Context, parent *models.User) ([]*report.Week, error) {
	if !parent.IsParent() {
		return nil, models.ErrNotParent
	}
	children, err := s.ListChildren(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}

	weeks := make([]*report.Week, 0, len(children))
	for _, child := range children {
		week, err := s.CurrentWeek(ctx, child)
		if err != nil {
			return nil, err
		}
		weeks = append(weeks, week)
	}
	return weeks, nil
}
