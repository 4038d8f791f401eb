package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// UserRole controls access to the administrative surface
type UserRole string

// Possible user roles
const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Common validation errors for User
var (
	ErrEmptyUserID       = errors.New("user ID cannot be empty")
	ErrEmptyUserEmail    = errors.New("user email cannot be empty")
	ErrEmptyUserPassword = errors.New("user hashed password cannot be empty")
	ErrInvalidUserRole   = errors.New("invalid user role")
)

// User is an authenticated caller of the API. Task ownership references
// the user ID; provider and account management requires the admin role.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Role           UserRole  `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with the given email and pre-hashed password.
func NewUser(email, hashedPassword string, role UserRole) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Email == "" {
		return ErrEmptyUserEmail
	}

	if u.HashedPassword == "" {
		return ErrEmptyUserPassword
	}

	if u.Role != UserRoleUser && u.Role != UserRoleAdmin {
		return ErrInvalidUserRole
	}

	return nil
}
