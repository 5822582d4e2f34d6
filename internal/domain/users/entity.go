package users

import (
	"errors"
	"time"
)

type UserID string

// User is an account allowed to sign in with email and password
type User struct {
	ID           UserID    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Settings is the single row of application settings.
type Settings struct {
	RegistrationOpen bool `json:"registration_open"`
}

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
