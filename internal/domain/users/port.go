package users

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	// Create returns ErrEmailTaken when the email already exists.
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)

	Settings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}
