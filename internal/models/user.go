// Package models defines the shared domain types persisted or exchanged by
// signalstudio's components.
package models

import "time"

// Role is a user's account role. The feature map in internal/auth treats
// admin as a superset of user, which is a superset of public — never
// compare roles by string elsewhere.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account: unique id, case-folded unique email, salted password
// hash, role, active flag, and a small free-form settings map.
type User struct {
	ID           string         `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	Name         string         `json:"name" db:"name"`
	Role         Role           `json:"role" db:"role"`
	Active       bool           `json:"isActive" db:"active"`
	Settings     map[string]any `json:"settings"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	LastLogin    *time.Time     `json:"lastLogin,omitempty" db:"last_login"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required,password"`
	Name     string `json:"name" binding:"required" validate:"required,min=1,max=200"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required" validate:"required,password"`
}

// UpdateUserRequest updates mutable admin-controlled fields on a user.
type UpdateUserRequest struct {
	Role   *Role `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	Active *bool `json:"active,omitempty"`
}

// ProfileUpdateRequest updates a user's own display name/settings.
type ProfileUpdateRequest struct {
	Name     *string        `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Settings map[string]any `json:"settings,omitempty"`
}

// AuthResponse is returned by register/login: the account plus a fresh
// bearer token.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
