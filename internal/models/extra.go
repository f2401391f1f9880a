package models

// ExtraTask is a one-off bonus task assigned by a parent. The row is the task
// definition itself, so a rejection resets it instead of deleting it.
type ExtraTask struct {
	ID        int64  `json:"id" db:"id"`
	FamilyID  int64  `json:"family_id" db:"family_id"`
	ChildID   int64  `json:"child_id" db:"child_id"`
	Title     string `json:"title" db:"title"`
	Points    int    `json:"points" db:"points"`
	Date      string `json:"date" db:"date"`
	Completed bool   `json:"completed" db:"completed"`
	Approved  bool   `json:"approved" db:"approved"`
	ProofRef  string `json:"proof_ref,omitempty" db:"proof_ref"`
	Medium    Medium `json:"medium,omitempty" db:"medium"`
}

// IsPending returns true if proof was submitted and awaits a decision
func (e *ExtraTask) IsPending() bool {
	return e.Completed && !e.Approved
}

// IsDone returns true if the extra task counts toward the score
func (e *ExtraTask) IsDone() bool {
	return e.Completed && e.Approved
}
