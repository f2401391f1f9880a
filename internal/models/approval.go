package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ApprovalKind tells checklist completions and extra tasks apart.
type ApprovalKind string

const (
	ApprovalTask  ApprovalKind = "task"
	ApprovalExtra ApprovalKind = "extra"
)

// ApprovalRef identifies an item awaiting (or past) a parent decision: a
// completion ID for ApprovalTask, an extra task ID for ApprovalExtra.
type ApprovalRef struct {
	Kind ApprovalKind `json:"kind"`
	ID   int64        `json:"id"`
}

func (r ApprovalRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ParseApprovalRef parses the "<kind>:<id>" form produced by String.
func ParseApprovalRef(s string) (ApprovalRef, error) {
	kind, rawID, ok := strings.Cut(s, ":")
	if !ok {
		return ApprovalRef{}, fmt.Errorf("malformed approval reference %q", s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return ApprovalRef{}, fmt.Errorf("malformed approval id in %q: %w", s, err)
	}
	switch ApprovalKind(kind) {
	case ApprovalTask, ApprovalExtra:
	default:
		return ApprovalRef{}, fmt.Errorf("unknown approval kind %q", kind)
	}
	return ApprovalRef{Kind: ApprovalKind(kind), ID: id}, nil
}

// Verdict is a parent's decision on a pending item
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// ApprovalMessage tracks one decision message shown to one parent. Rows live
// only while the item is pending.
type ApprovalMessage struct {
	ID           int64        `json:"id" db:"id"`
	Kind         ApprovalKind `json:"approval_kind" db:"approval_kind"`
	ApprovalID   int64        `json:"approval_id" db:"approval_id"`
	ParentChatID int64        `json:"parent_chat_id" db:"parent_chat_id"`
	MessageRef   string       `json:"message_ref" db:"message_ref"`
}

// PendingApproval is a pending item as listed for parents.
type PendingApproval struct {
	Ref       ApprovalRef `json:"ref"`
	ChildID   int64       `json:"child_id"`
	ChildName string      `json:"child_name"`
	Date      string      `json:"date"`
	TaskKey   string      `json:"task_key,omitempty"`
	Label     string      `json:"label"`
	Points    int         `json:"points,omitempty"`
	ProofRef  string      `json:"proof_ref"`
	Medium    Medium      `json:"medium"`
}
