package analysistypes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
)

// ErrNoChanges is returned by Save when the schema equals the stored one.
var ErrNoChanges = errors.New("no changes detected")

// Service manages the analysis types (question schemas) of an owner
type Service struct {
	Repo  domain.Repository
	Clock application.Clock
}

func (s *Service) List(ctx context.Context, owner string) ([]*domain.AnalysisType, error) {
	return s.Repo.List(ctx, owner)
}

func (s *Service) Get(ctx context.Context, owner, title string) (*domain.AnalysisType, error) {
	return s.Repo.Get(ctx, owner, title)
}

// Save validates the schema and replaces the stored one. When nothing changed
// the stored type is returned together with ErrNoChanges.
func (s *Service) Save(ctx context.Context, owner, title string, schema domain.Schema) (*domain.AnalysisType, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, audits.Required("title")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Repo.Get(ctx, owner, title)
	switch {
	case err == nil:
		if current.Questions.Equal(schema) {
			return current, ErrNoChanges
		}
	case errors.Is(err, domain.ErrNotFound):
		current = &domain.AnalysisType{
			ID:        uuid.New().String(),
			OwnerID:   owner,
			Title:     title,
			CreatedAt: s.Clock.Now(),
		}
	default:
		return nil, fmt.Errorf("load analysis type: %w", err)
	}

	next := *current
	next.Questions = schema
	if err := s.Repo.Replace(ctx, &next); err != nil {
		return nil, fmt.Errorf("save analysis type: %w", err)
	}
	return &next, nil
}

func (s *Service) Delete(ctx context.Context, owner, title string) error {
	return s.Repo.Delete(ctx, owner, title)
}

// OptionQuestions lists options-type questions across the owner's analysis
// types, the choices offered by the dashboard.
func (s *Service) OptionQuestions(ctx context.Context, owner string) ([]domain.OptionQuestion, error) {
	types, err := s.Repo.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := []domain.OptionQuestion{}
	for _, t := range types {
		for _, q := range t.Questions.OptionTitles() {
			out = append(out, domain.OptionQuestion{AnalysisType: t.Title, QuestionTitle: q})
		}
	}
	return out, nil
}
