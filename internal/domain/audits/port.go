package audits

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	ContactExists(ctx context.Context, contactID string) (bool, error)
	// CreateWithAnswers stores the audit and all its answers atomically and
	// returns ErrDuplicateContact when the contact id is taken.
	CreateWithAnswers(ctx context.Context, a *Audit) error
	ListAnswers(ctx context.Context, f Filter) ([]AnswerRow, error)
	Count(ctx context.Context, f Filter) (int64, error)
}
