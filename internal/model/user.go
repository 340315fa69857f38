package model

import "time"

// Role is the authorization role carried by every user.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleSenior   Role = "senior"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleSenior
}

// User represents an account that can log in to the system
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose password hash in JSON responses
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsSenior() bool   { return u != nil && u.Role == RoleSenior }
func (u *User) IsEmployee() bool { return u != nil && u.Role == RoleEmployee }

// NewUser holds the fields needed to register an account.
type NewUser struct {
	Username string `validate:"required,max=120"`
	Email    string `validate:"required,email,max=120"`
	FullName string `validate:"required,max=120"`
	Password string `validate:"required,min=8"`
	Role     Role   `validate:"required,oneof=employee senior"`
}
