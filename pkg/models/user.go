package models

import (
	"time"
)

// UserRole represents valid user roles
type UserRole string

const (
	UserRoleUser       UserRole = "user"
	UserRoleTranslator UserRole = "translator"
	UserRoleAdmin      UserRole = "admin"
)

// Reserved bootstrap administrator. It cannot be demoted or deleted.
const (
	BootstrapAdminID   = "admin_hajime"
	BootstrapAdminName = "Hajime Akira"
)

// User represents a system user
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role" validate:"required,oneof=user translator admin"`
	Avatar       string    `json:"avatar,omitempty" db:"avatar"`
	Cover        string    `json:"cover,omitempty" db:"cover"`
	Description  string    `json:"description,omitempty" db:"description"`
	IsVerified   bool      `json:"isVerified" db:"is_verified"`
	JoinedAt     time.Time `json:"joinedAt" db:"joined_at"`
}

// IsBootstrapAdmin reports whether u is the reserved administrator
func (u *User) IsBootstrapAdmin() bool {
	return u.ID == BootstrapAdminID
}

// CanUpload reports whether u may publish stories and chapters
func (u *User) CanUpload() bool {
	return u.Role == UserRoleTranslator || u.Role == UserRoleAdmin
}

// HasRole checks the role ladder user < translator < admin
func (u *User) HasRole(requiredRole UserRole) bool {
	switch requiredRole {
	case UserRoleAdmin:
		return u.Role == UserRoleAdmin
	case UserRoleTranslator:
		return u.CanUpload()
	default:
		return true
	}
}

// SignupRequest
type SignupRequest struct {
	Name         string `json:"name" form:"name" validate:"required,min=2,max=50"`
	Email        string `json:"email" form:"email" validate:"required,email"`
	Password     string `json:"password" form:"password" validate:"required,min=6,max=128"`
	IsTranslator bool   `json:"isTranslator" form:"isTranslator"`
}

// LoginRequest. LoginID is matched against both email and display name.
type LoginRequest struct {
	LoginID  string `json:"loginId" form:"loginId" validate:"required"`
	Password string `json:"password" form:"password"`
}

// UpdateProfileRequest
type UpdateProfileRequest struct {
	Name        string `json:"name" form:"name" validate:"required,min=2,max=50"`
	Description string `json:"description" form:"description" validate:"max=1000"`
	Avatar      string `json:"avatar" form:"avatar"`
	Cover       string `json:"cover" form:"cover"`
}

// LoginResponse
type LoginResponse struct {
	Token     string `json:"token"`
	User      *User  `json:"user"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// AdminActionType enumerates the moderation actions on users
type AdminActionType string

const (
	AdminActionDeleteUser   AdminActionType = "delete_user"
	AdminActionToggleRole   AdminActionType = "toggle_role"
	AdminActionToggleVerify AdminActionType = "toggle_verify"
)
