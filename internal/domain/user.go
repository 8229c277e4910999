package domain

import "time"

// Role determines which actions a caller may perform.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

// IsStaff reports whether the role carries staff-level permissions.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// User is the identity record for customers, staff and admins. The role is
// fixed at creation; there is no self-promotion path.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
