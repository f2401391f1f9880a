package models

// Family represents a group of parents and children sharing an invite code
type Family struct {
	ID             int64  `json:"id" db:"id"`
	InviteCode     string `json:"invite_code" db:"invite_code"`
	ParentPassword string `json:"-" db:"parent_password"`
}

// HasPassword reports whether joining as a parent requires a password.
func (f *Family) HasPassword() bool {
	return f.ParentPassword != ""
}
