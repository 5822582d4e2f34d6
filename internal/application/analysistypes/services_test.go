package analysistypes

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
)

type memRepo struct {
	items    map[string]*domain.AnalysisType
	replaced int
}

func newMemRepo() *memRepo { return &memRepo{items: map[string]*domain.AnalysisType{}} }

func (m *memRepo) List(ctx context.Context, owner string) ([]*domain.AnalysisType, error) {
	var out []*domain.AnalysisType
	for _, t := range m.items {
		if t.OwnerID == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *memRepo) Get(ctx context.Context, owner, title string) (*domain.AnalysisType, error) {
	t, ok := m.items[owner+"/"+title]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (m *memRepo) Replace(ctx context.Context, t *domain.AnalysisType) error {
	m.replaced++
	m.items[t.OwnerID+"/"+t.Title] = t
	return nil
}

func (m *memRepo) Delete(ctx context.Context, owner, title string) error {
	if _, ok := m.items[owner+"/"+title]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, owner+"/"+title)
	return nil
}

var now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func schema() domain.Schema {
	return domain.Schema{
		{Title: "Root Cause", Kind: domain.KindOptions, RawType: "options",
			Options: []domain.Option{{Label: "Billing", SubDemands: []string{"Late Fee"}}}},
		{Title: "Summary", Kind: domain.KindSentence, RawType: "sentence", CharacterLimit: 200},
	}
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := &Service{Repo: repo, Clock: application.FixedClock(now)}

	at, err := svc.Save(ctx, "alice", " QA ", schema())
	require.NoError(t, err)
	assert.Equal(t, "QA", at.Title)
	assert.Equal(t, "alice", at.OwnerID)
	assert.Equal(t, now, at.CreatedAt)
	assert.NotEmpty(t, at.ID)

	_, err = svc.Save(ctx, "alice", "QA", schema())
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Equal(t, 1, repo.replaced)

	changed := schema()
	changed[1].CharacterLimit = 50
	updated, err := svc.Save(ctx, "alice", "QA", changed)
	require.NoError(t, err)
	assert.Equal(t, at.ID, updated.ID, "id is kept across replaces")
	assert.Equal(t, 2, repo.replaced)
}

func TestSaveRejectsInvalid(t *testing.T) {
	svc := &Service{Repo: newMemRepo(), Clock: application.FixedClock(now)}

	_, err := svc.Save(context.Background(), "alice", "QA", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)

	_, err = svc.Save(context.Background(), "alice", "", schema())
	assert.EqualError(t, err, "title is required")
}

func TestOptionQuestions(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Repo: newMemRepo(), Clock: application.FixedClock(now)}
	_, err := svc.Save(ctx, "alice", "QA", schema())
	require.NoError(t, err)
	_, err = svc.Save(ctx, "bob", "Other", schema())
	require.NoError(t, err)

	got, err := svc.OptionQuestions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []domain.OptionQuestion{{AnalysisType: "QA", QuestionTitle: "Root Cause"}}, got)

	got, err = svc.OptionQuestions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}
