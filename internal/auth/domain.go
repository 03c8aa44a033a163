package auth

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned by repositories for an unknown email or id.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	RoleID       *int64
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginSession is the persisted record of one login.
type LoginSession struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	IP        string
	UserAgent string
	CreatedAt time.Time
}
