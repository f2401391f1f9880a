package models

import "time"

// DateLayout is the calendar-day format used for every stored date.
const DateLayout = "2006-01-02"

// FormatDate renders t as a calendar day in t's location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Medium is the kind of proof attached to a submission
type Medium string

const (
	MediumPhoto Medium = "photo"
	MediumVideo Medium = "video"
)

// Valid reports whether m is a supported medium.
func (m Medium) Valid() bool {
	return m == MediumPhoto || m == MediumVideo
}

// Completion is submitted proof for a checklist item on one calendar day.
// A row with Approved == false is pending review.
type Completion struct {
	ID       int64  `json:"id" db:"id"`
	ChildID  int64  `json:"child_id" db:"child_id"`
	TaskKey  string `json:"task_key" db:"task_key"`
	Date     string `json:"date" db:"date"`
	ProofRef string `json:"proof_ref" db:"proof_ref"`
	Medium   Medium `json:"medium" db:"medium"`
	Approved bool   `json:"approved" db:"approved"`
}

// IsPending returns true if the completion awaits a parent decision
func (c *Completion) IsPending() bool {
	return !c.Approved
}
