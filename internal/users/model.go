package users

import (
	"time"

	"github.com/stashspace/stashspace/internal/authz"
)

// User is an account on the marketplace: either an administrator running the
// warehouse side or a trader requesting space.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	Role         authz.Role `json:"role" db:"role"`
	PasswordHash string     `json:"-" db:"password_hash"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
