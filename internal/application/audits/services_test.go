package audits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/ai"
	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
)

type fakeTypes struct {
	types map[string]*questions.AnalysisType
}

func (f *fakeTypes) List(ctx context.Context, owner string) ([]*questions.AnalysisType, error) {
	return nil, nil
}

func (f *fakeTypes) Get(ctx context.Context, owner, title string) (*questions.AnalysisType, error) {
	at, ok := f.types[owner+"/"+title]
	if !ok {
		return nil, questions.ErrNotFound
	}
	return at, nil
}

func (f *fakeTypes) Replace(ctx context.Context, at *questions.AnalysisType) error { return nil }

func (f *fakeTypes) Delete(ctx context.Context, owner, title string) error { return nil }

type fakeRepo struct {
	contacts map[string]bool
	saved    []*domain.Audit
	failWith error
}

func (f *fakeRepo) ContactExists(ctx context.Context, contactID string) (bool, error) {
	return f.contacts[contactID], nil
}

func (f *fakeRepo) CreateWithAnswers(ctx context.Context, a *domain.Audit) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.saved = append(f.saved, a)
	return nil
}

func (f *fakeRepo) ListAnswers(ctx context.Context, flt domain.Filter) ([]domain.AnswerRow, error) {
	return nil, nil
}

func (f *fakeRepo) Count(ctx context.Context, flt domain.Filter) (int64, error) { return 0, nil }

type fakeModel struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeModel) Complete(ctx context.Context, p string) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.out, f.err
}

const validOutput = `{"questions":[{"title":"Root Cause","answer":"Billing","sub_demand":"Late Fee","description":"None"}]}`

func newService(model *fakeModel, repo *fakeRepo) *Service {
	return &Service{
		Types: &fakeTypes{types: map[string]*questions.AnalysisType{
			"alice/QA": {Title: "QA", Questions: questions.Schema{
				{Title: "Root Cause", Kind: questions.KindOptions, RawType: "options",
					Options: []questions.Option{{Label: "Billing", SubDemands: []string{"Late Fee"}}}},
			}},
		}},
		Repo:  repo,
		Model: model,
		Clock: application.FixedClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("parses model output", func(t *testing.T) {
		m := &fakeModel{out: validOutput}
		res, err := newService(m, &fakeRepo{}).Analyze(ctx, "alice", AnalyzeCommand{AnalysisType: "QA", Transcript: "hello"})
		require.NoError(t, err)
		require.NotNil(t, res.Answer)
		assert.Equal(t, "Billing", string(res.Answer.Questions[0].Answer))
		require.Len(t, m.prompts, 1)
		assert.Contains(t, m.prompts[0], "hello")
	})

	t.Run("unknown analysis type", func(t *testing.T) {
		m := &fakeModel{out: validOutput}
		_, err := newService(m, &fakeRepo{}).Analyze(ctx, "bob", AnalyzeCommand{AnalysisType: "QA", Transcript: "hello"})
		assert.ErrorIs(t, err, questions.ErrNotFound)
		assert.Empty(t, m.prompts)
	})

	t.Run("parse failure keeps raw", func(t *testing.T) {
		m := &fakeModel{out: "sorry, I can't"}
		res, err := newService(m, &fakeRepo{}).Analyze(ctx, "alice", AnalyzeCommand{AnalysisType: "QA", Transcript: "hello"})
		var pe *domain.ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "sorry, I can't", res.Raw)
		assert.Nil(t, res.Answer)
	})

	t.Run("model error propagates", func(t *testing.T) {
		m := &fakeModel{err: ai.Failed("openai", errors.New("boom"))}
		_, err := newService(m, &fakeRepo{}).Analyze(ctx, "alice", AnalyzeCommand{AnalysisType: "QA", Transcript: "hello"})
		assert.ErrorIs(t, err, ai.ErrRequestFailed)
	})

	t.Run("blank transcript", func(t *testing.T) {
		_, err := newService(&fakeModel{}, &fakeRepo{}).Analyze(ctx, "alice", AnalyzeCommand{AnalysisType: "QA", Transcript: "  "})
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "transcript", ve.Field)
	})
}

func TestRelay(t *testing.T) {
	ctx := context.Background()

	out, err := newService(&fakeModel{out: "  {\"questions\":[]}\n"}, &fakeRepo{}).
		Relay(ctx, RelayCommand{Transcript: "t", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"questions":[]}`, out)

	_, err = newService(&fakeModel{out: " \n"}, &fakeRepo{}).Relay(ctx, RelayCommand{Transcript: "t", Prompt: "p"})
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)

	_, err = newService(&fakeModel{}, &fakeRepo{}).Relay(ctx, RelayCommand{Transcript: "t"})
	assert.EqualError(t, err, "prompt is required")
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	cmd := SaveCommand{ContactID: "C-1", CallDate: "2024-05-01", AnalysisType: "QA", Output: validOutput}

	t.Run("stores audit with answers", func(t *testing.T) {
		repo := &fakeRepo{}
		a, err := newService(&fakeModel{}, repo).Save(ctx, "alice", cmd)
		require.NoError(t, err)
		require.Len(t, repo.saved, 1)
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, "alice", a.CreatedBy)
		assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), a.CallDate)
		assert.Equal(t, []domain.Answer{{QuestionTitle: "Root Cause", Answer: "Billing", Description: "None", SubDemand: "Late Fee"}}, a.Answers)
	})

	t.Run("duplicate contact blocks the write", func(t *testing.T) {
		repo := &fakeRepo{contacts: map[string]bool{"C-1": true}}
		_, err := newService(&fakeModel{}, repo).Save(ctx, "alice", cmd)
		assert.ErrorIs(t, err, domain.ErrDuplicateContact)
		assert.Empty(t, repo.saved)
	})

	t.Run("duplicate detected by the store", func(t *testing.T) {
		repo := &fakeRepo{failWith: domain.ErrDuplicateContact}
		_, err := newService(&fakeModel{}, repo).Save(ctx, "alice", cmd)
		assert.ErrorIs(t, err, domain.ErrDuplicateContact)
	})

	t.Run("missing fields", func(t *testing.T) {
		c := cmd
		c.ContactID = ""
		_, err := newService(&fakeModel{}, &fakeRepo{}).Save(ctx, "alice", c)
		assert.EqualError(t, err, "contact_id is required")

		c = cmd
		c.CallDate = "01/05/2024"
		_, err = newService(&fakeModel{}, &fakeRepo{}).Save(ctx, "alice", c)
		assert.EqualError(t, err, "call_date: must be YYYY-MM-DD")
	})

	t.Run("invalid output", func(t *testing.T) {
		c := cmd
		c.Output = "{oops"
		repo := &fakeRepo{}
		_, err := newService(&fakeModel{}, repo).Save(ctx, "alice", c)
		var pe *domain.ParseError
		require.True(t, errors.As(err, &pe))
		assert.Empty(t, repo.saved)
	})
}
