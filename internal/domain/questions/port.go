package questions

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no analysis type matches owner+title.
var ErrNotFound = errors.New("analysis type not found")

// Repository port for analysis types
type Repository interface {
	List(ctx context.Context, owner string) ([]*AnalysisType, error)
	Get(ctx context.Context, owner, title string) (*AnalysisType, error)
	// Replace swaps the stored schema for owner+title in a single transaction.
	Replace(ctx context.Context, t *AnalysisType) error
	Delete(ctx context.Context, owner, title string) error
}
