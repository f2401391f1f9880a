package models

// TaskGroup is the part of the day (or week) a checklist item belongs to.
type TaskGroup string

const (
	GroupMorning TaskGroup = "morning"
	GroupEvening TaskGroup = "evening"
	GroupWeekly  TaskGroup = "weekly"
	GroupCustom  TaskGroup = "custom"
)

// Valid reports whether g is a known group.
func (g TaskGroup) Valid() bool {
	switch g {
	case GroupMorning, GroupEvening, GroupWeekly, GroupCustom:
		return true
	}
	return false
}

// IsDaily returns true for groups that are scored every day.
func (g TaskGroup) IsDaily() bool {
	return g != GroupWeekly
}

// ChecklistItem is one entry of a child's checklist
type ChecklistItem struct {
	ChildID    int64     `json:"child_id" db:"child_id"`
	TaskKey    string    `json:"key" db:"task_key"`
	Label      string    `json:"label" db:"label"`
	Group      TaskGroup `json:"group" db:"temporal_group"`
	IsStandard bool      `json:"is_standard" db:"is_standard"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	SortOrder  int       `json:"sort_order" db:"sort_order"`
}
