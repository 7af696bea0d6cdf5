package registry

import "semidex-go/internal/ledger"

// AccessControl authorizes registry mutations against a single administrator fixed at construction.
type AccessControl struct {
	admin ledger.Address
}

// NewAccessControl creates an AccessControl for admin.
func NewAccessControl(admin ledger.Address) AccessControl {
	return AccessControl{admin: admin}
}

// Admin returns the administrator identity.
func (a AccessControl) Admin() ledger.Address {
	return a.admin
}

// Authorize returns ErrUnauthorized unless caller is the administrator.
func (a AccessControl) Authorize(caller ledger.Address) error {
	if caller != a.admin {
		return ErrUnauthorized
	}
	return nil
}
