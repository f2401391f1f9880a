package models

// Role distinguishes parents, who decide on submissions, from children, who
// submit proof.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// User represents a registered family member. ExternalChatID is the global
// chat identity; ID is the internal identity used by every other table.
type User struct {
	ID             int64  `json:"id" db:"id"`
	ExternalChatID int64  `json:"external_chat_id" db:"external_chat_id"`
	Role           Role   `json:"role" db:"role"`
	FamilyID       int64  `json:"family_id" db:"family_id"`
	Name           string `json:"name" db:"name"`
}

// IsParent returns true if the user is a parent
func (u *User) IsParent() bool {
	return u.Role == RoleParent
}

// IsChild returns true if the user is a child
func (u *User) IsChild() bool {
	return u.Role == RoleChild
}
