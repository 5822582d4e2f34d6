package mysql

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/users"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (id, email, password_hash, is_admin, created_at)
VALUES (?,?,?,?,?);`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt)
	if isDuplicate(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `
SELECT id, email, password_hash, is_admin, created_at
FROM users WHERE email=? LIMIT 1;`
	var u domain.User
	err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	const q = `SELECT id, email, password_hash, is_admin, created_at FROM users ORDER BY created_at ASC, email ASC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Settings reads the single settings row; a missing row means defaults.
func (r *UserRepository) Settings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := r.db.QueryRowContext(ctx, `SELECT registration_open FROM app_settings WHERE id=1;`).Scan(&s.RegistrationOpen)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	return s, err
}

func (r *UserRepository) SaveSettings(ctx context.Context, s domain.Settings) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM app_settings WHERE id=1;`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		_, err = tx.ExecContext(ctx, `UPDATE app_settings SET registration_open=? WHERE id=1;`, s.RegistrationOpen)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO app_settings (id, registration_open) VALUES (1, ?);`, s.RegistrationOpen)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}
