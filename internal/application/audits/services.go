package audits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/ai"
	domain "github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/ai/prompt"
)

// Service implements use-cases untuk audit: analyze, relay, save
type Service struct {
	Types questions.Repository
	Repo  domain.Repository
	Model ai.Client
	Clock application.Clock
}

//
// ==== USE CASES ====
//

type AnalyzeCommand struct {
	AnalysisType string `json:"analysis_type"`
	Transcript   string `json:"transcript"`
}

// AnalyzeResult always carries the raw model output so a caller can show it
// when parsing fails.
type AnalyzeResult struct {
	Raw    string              `json:"raw"`
	Answer *domain.ModelAnswer `json:"answer,omitempty"`
}

// Analyze builds the prompt for the owner's analysis type, invokes the model
// once and parses the answer.
func (s *Service) Analyze(ctx context.Context, owner string, cmd AnalyzeCommand) (AnalyzeResult, error) {
	if strings.TrimSpace(cmd.AnalysisType) == "" {
		return AnalyzeResult{}, domain.Required("analysis_type")
	}
	if strings.TrimSpace(cmd.Transcript) == "" {
		return AnalyzeResult{}, domain.Required("transcript")
	}

	at, err := s.Types.Get(ctx, owner, cmd.AnalysisType)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("load analysis type %q: %w", cmd.AnalysisType, err)
	}

	p, err := prompt.BuildPrompt(at.Questions, cmd.Transcript)
	if err != nil {
		return AnalyzeResult{}, err
	}

	raw, err := s.Model.Complete(ctx, p)
	if err != nil {
		return AnalyzeResult{}, err
	}

	res := AnalyzeResult{Raw: raw}
	answer, err := domain.ParseModelAnswer(raw)
	if err != nil {
		return res, err
	}
	res.Answer = &answer
	return res, nil
}

// RelayCommand is the body of the wire-compatible /analyze endpoint. The
// prompt is already built by the client and embeds the transcript.
type RelayCommand struct {
	ContactID  string `json:"contactId,omitempty"`
	CallDate   string `json:"callDate,omitempty"`
	Transcript string `json:"transcript"`
	Prompt     string `json:"prompt"`
}

// Relay forwards a prebuilt prompt to the model and returns its trimmed text.
func (s *Service) Relay(ctx context.Context, cmd RelayCommand) (string, error) {
	if strings.TrimSpace(cmd.Transcript) == "" {
		return "", domain.Required("transcript")
	}
	if strings.TrimSpace(cmd.Prompt) == "" {
		return "", domain.Required("prompt")
	}
	out, err := s.Model.Complete(ctx, cmd.Prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ai.Empty("relay")
	}
	return out, nil
}

type SaveCommand struct {
	ContactID    string `json:"contact_id"`
	CallDate     string `json:"call_date"`
	AnalysisType string `json:"analysis_type"`
	Output       string `json:"output"`
}

// Save validates the command, parses the model output and stores the audit
// with all its answers in one write.
func (s *Service) Save(ctx context.Context, owner string, cmd SaveCommand) (*domain.Audit, error) {
	for _, f := range []struct{ name, value string }{
		{"output", cmd.Output},
		{"contact_id", cmd.ContactID},
		{"call_date", cmd.CallDate},
		{"analysis_type", cmd.AnalysisType},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, domain.Required(f.name)
		}
	}
	callDate, err := time.Parse(domain.CallDateLayout, strings.TrimSpace(cmd.CallDate))
	if err != nil {
		return nil, &domain.ValidationError{Field: "call_date", Reason: "must be YYYY-MM-DD"}
	}

	answer, err := domain.ParseModelAnswer(cmd.Output)
	if err != nil {
		return nil, err
	}

	contactID := strings.TrimSpace(cmd.ContactID)
	exists, err := s.Repo.ContactExists(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("check contact: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateContact
	}

	a := &domain.Audit{
		ID:           domain.AuditID(uuid.New().String()),
		ContactID:    contactID,
		CallDate:     callDate,
		AnalysisType: cmd.AnalysisType,
		CreatedBy:    owner,
		CreatedAt:    s.Clock.Now(),
		Answers:      answer.Answers(),
	}
	if err := s.Repo.CreateWithAnswers(ctx, a); err != nil {
		if errors.Is(err, domain.ErrDuplicateContact) {
			return nil, err
		}
		return nil, fmt.Errorf("save audit: %w", err)
	}
	return a, nil
}
