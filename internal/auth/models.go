package auth

import "time"

// Role distinguishes an operator account's privileges. Operators manage the
// world (bootstrap, manual tick, region editing); they are distinct from
// in-game Players, who act only through forum commands.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleOp    Role = "op"
)

// User is an operator account, not an in-game player.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// RegisterRequest is the payload for creating a new operator account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// LoginRequest is the payload for an operator login attempt.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
