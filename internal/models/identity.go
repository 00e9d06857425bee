package models

import (
	"time"

	"github.com/samber/lo"
)

// RoleAdmin grants the privileged hub methods.
const RoleAdmin = "Admin"

// Identity is a durable user as known by the user directory.
type Identity struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Principal is an identity together with the roles its credential carried.
type Principal struct {
	Identity
	Roles []string `json:"roles,omitempty"`
}

// IsAdmin reports whether the principal holds the Admin role.
func (p Principal) IsAdmin() bool {
	return lo.Contains(p.Roles, RoleAdmin)
}
