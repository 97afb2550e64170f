package domain

import "time"

// Role classifies marketplace accounts.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is a known marketplace role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// SelfServeRoles are the roles a client may pick at registration time.
// Admin accounts are only created through bootstrap.
var SelfServeRoles = []Role{RoleCustomer, RoleStaff, RoleProvider}

// User represents a marketplace account that can authenticate.
// TokenVersion is the invalidation epoch: bumping it rejects every
// refresh token issued before the bump.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         Role
	TokenVersion int
	IsRestricted bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
