package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/users"
)

const (
	minPasswordLength = 8
	// bcrypt only hashes the first 72 bytes and refuses longer input
	maxPasswordLength = 72
)

// Service handles accounts and the registration gate
type Service struct {
	Repo  domain.Repository
	Clock application.Clock
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register is the self-service sign up, allowed only while registration is open.
func (s *Service) Register(ctx context.Context, c Credentials) (*domain.User, error) {
	settings, err := s.Repo.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.RegistrationOpen {
		return nil, domain.ErrRegistrationClosed
	}
	return s.create(ctx, c, false)
}

// CreateUser is the admin path and ignores the registration gate.
func (s *Service) CreateUser(ctx context.Context, c Credentials, admin bool) (*domain.User, error) {
	return s.create(ctx, c, admin)
}

func (s *Service) create(ctx context.Context, c Credentials, admin bool) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" {
		return nil, audits.Required("email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &audits.ValidationError{Field: "email", Reason: "invalid address"}
	}
	if len(c.Password) < minPasswordLength {
		return nil, &audits.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if len(c.Password) > maxPasswordLength {
		return nil, &audits.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at most %d bytes", maxPasswordLength)}
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		ID:           domain.UserID(uuid.New().String()),
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      admin,
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Repo.List(ctx)
}

func (s *Service) RegistrationOpen(ctx context.Context) (bool, error) {
	st, err := s.Repo.Settings(ctx)
	if err != nil {
		return false, err
	}
	return st.RegistrationOpen, nil
}

func (s *Service) SetRegistrationOpen(ctx context.Context, open bool) error {
	return s.Repo.SaveSettings(ctx, domain.Settings{RegistrationOpen: open})
}

// Authenticate checks email and password. Unknown email and wrong password
// return the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.Repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}
