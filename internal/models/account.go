package models

import "time"

// Role enumerates the recognized account roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the recognized role values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Status is the account activation state. An account stays offline from
// creation until a matching, unexpired OTP is consumed; there is no
// path back to offline.
type Status string

const (
	StatusOffline Status = "offline"
	StatusActive  Status = "active"
)

// Account is a persisted user record, keyed by email.
type Account struct {
	ID           int64     `json:"id" db:"id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	Picture      string    `json:"picture" db:"picture"`
	Year         int       `json:"year" db:"year"`
	RegionID     int64     `json:"region_id" db:"region_id"`
	Status       Status    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Region is an external entity referenced by accounts. Registration
// fails closed when the referenced region does not exist.
type Region struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
