package repository

import (
	"context"

	"github.com/Kerhoff/chorebot/internal/models"
)

// FamilyRepository defines the interface for family data operations
type FamilyRepository interface {
	Create(ctx context.Context, family *models.Family) (*models.Family, error)
	GetByID(ctx context.Context, id int64) (*models.Family, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Family, error)
	List(ctx context.Context) ([]*models.Family, error)
	SetPassword(ctx context.Context, id int64, password string) error
	// Delete removes the family and everything that belongs to it, returning
	// the chat identities of its former members.
	Delete(ctx context.Context, id int64) ([]int64, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.User, error)
	ListByFamily(ctx context.Context, familyID int64, role models.Role) ([]*models.User, error)
}

// ChecklistRepository defines the interface for per-child checklist rows
type ChecklistRepository interface {
	// InsertBaseline inserts items only when the child has no rows at all.
	// It reports whether anything was inserted.
	InsertBaseline(ctx context.Context, childID int64, items []*models.ChecklistItem) (bool, error)
	List(ctx context.Context, childID int64, enabledOnly bool) ([]*models.ChecklistItem, error)
	Get(ctx context.Context, childID int64, key string) (*models.ChecklistItem, error)
	SetEnabled(ctx context.Context, childID int64, key string, enabled bool) error
	// AddCustom appends a non-standard item after the current last one and
	// returns its generated key.
	AddCustom(ctx context.Context, childID int64, label string, group models.TaskGroup) (string, error)
	DeleteCustom(ctx context.Context, childID int64, key string) error
	// Reset replaces every row of the child with items.
	Reset(ctx context.Context, childID int64, items []*models.ChecklistItem) error
}

// CompletionRepository defines the interface for checklist completions
type CompletionRepository interface {
	// Upsert stores a pending completion, replacing the proof of a pending
	// row for the same (child, key, date). Approved rows are never replaced;
	// models.ErrAlreadyResolved is returned instead.
	Upsert(ctx context.Context, completion *models.Completion) (*models.Completion, error)
	GetByID(ctx context.Context, id int64) (*models.Completion, error)
	Get(ctx context.Context, childID int64, key, date string) (*models.Completion, error)
	// Delete removes the row regardless of its approval state.
	Delete(ctx context.Context, childID int64, key, date string) (bool, error)
	// DeletePending removes the row only while it is not approved.
	DeletePending(ctx context.Context, id int64) error
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64) error
	KeysForDate(ctx context.Context, childID int64, date string, approved bool) ([]string, error)
	// ApprovedKeysForRange returns every day in [start, end], empty days included.
	ApprovedKeysForRange(ctx context.Context, childID int64, start, end string) (map[string][]string, error)
	PendingForFamily(ctx context.Context, familyID int64) ([]*models.PendingApproval, error)
}

// ExtraTaskRepository defines the interface for bonus task operations
type ExtraTaskRepository interface {
	Create(ctx context.Context, extra *models.ExtraTask) (*models.ExtraTask, error)
	GetByID(ctx context.Context, id int64) (*models.ExtraTask, error)
	ListForDate(ctx context.Context, childID int64, date string) ([]*models.ExtraTask, error)
	// Submit attaches proof and moves the task to pending.
	Submit(ctx context.Context, id int64, proofRef string, medium models.Medium) error
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64) error
	// Reset returns the task to its unsubmitted state regardless of approval.
	Reset(ctx context.Context, id int64) error
	// ResetPending is Reset restricted to a submitted, unapproved task.
	ResetPending(ctx context.Context, id int64) error
	PointsForRange(ctx context.Context, childID int64, start, end string) (map[string]int, error)
	PendingForFamily(ctx context.Context, familyID int64) ([]*models.PendingApproval, error)
}

// ApprovalMessageRepository defines the interface for tracking rows
type ApprovalMessageRepository interface {
	Add(ctx context.Context, msg *models.ApprovalMessage) (*models.ApprovalMessage, error)
	List(ctx context.Context, ref models.ApprovalRef) ([]*models.ApprovalMessage, error)
	// Delete removes the given rows; rows added since they were listed stay.
	Delete(ctx context.Context, ids ...int64) (int64, error)
}
