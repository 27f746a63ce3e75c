package core

// Role decides which grid operations a user may perform.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadOnly Role = "readonly"
)

// CanEdit reports whether the role may create, edit, confirm or delete records.
func (r Role) CanEdit() bool {
	return r == RoleAdmin
}

// Authorize returns ErrForbidden unless the role may edit.
func (r Role) Authorize() error {
	if !r.CanEdit() {
		return ErrForbidden
	}
	return nil
}
