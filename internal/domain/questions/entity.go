package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultCharacterLimit applies to sentence questions without a positive limit.
const DefaultCharacterLimit = 128

// ErrInvalidSchema is returned when a question schema cannot be used to build a prompt.
var ErrInvalidSchema = errors.New("invalid question schema")

// Kind enum
type Kind int

const (
	KindUnknown Kind = iota
	KindOptions
	KindSentence
)

// ParseKind maps a persisted type string to a Kind. Anything unrecognised is KindUnknown.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "options":
		return KindOptions
	case "sentence":
		return KindSentence
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindOptions:
		return "options"
	case KindSentence:
		return "sentence"
	default:
		return "unknown"
	}
}

// Option is one selectable answer of an options question.
type Option struct {
	Label      string   `json:"label"`
	SubDemands []string `json:"sub"`
}

// Question is one element of an analysis type. Kind decides which payload
// field is meaningful: Options for KindOptions, CharacterLimit for KindSentence.
type Question struct {
	Title          string
	Kind           Kind
	RawType        string
	Options        []Option
	CharacterLimit int
	PromptOverride string
}

// EffectiveCharacterLimit returns the limit with the default applied.
func (q Question) EffectiveCharacterLimit() int {
	if q.CharacterLimit <= 0 {
		return DefaultCharacterLimit
	}
	return q.CharacterLimit
}

// persisted form, matching what the configuration editor stores
type questionJSON struct {
	Title          string   `json:"question_title"`
	Type           string   `json:"type"`
	Options        []Option `json:"options"`
	CharacterLimit *int     `json:"character_limit"`
	Prompt         *string  `json:"prompt"`
}

// MarshalJSON writes the canonical persisted form.
func (q Question) MarshalJSON() ([]byte, error) {
	out := questionJSON{
		Title: q.Title,
		Type:  q.RawType,
	}
	if out.Type == "" {
		out.Type = q.Kind.String()
	}
	switch q.Kind {
	case KindOptions:
		out.Options = q.Options
		if out.Options == nil {
			out.Options = []Option{}
		}
	case KindSentence:
		limit := q.EffectiveCharacterLimit()
		out.CharacterLimit = &limit
	}
	if q.PromptOverride != "" {
		p := q.PromptOverride
		out.Prompt = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the persisted keys and the camelCase keys used by
// older clients.
func (q *Question) UnmarshalJSON(b []byte) error {
	var raw struct {
		QuestionTitle  string          `json:"question_title"`
		Title          string          `json:"title"`
		Type           string          `json:"type"`
		Options        []optionJSON    `json:"options"`
		CharacterLimit json.RawMessage `json:"character_limit"`
		CharLimit      json.RawMessage `json:"charLimit"`
		CharLimitSnake json.RawMessage `json:"char_limit"`
		Prompt         string          `json:"prompt"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	title := raw.QuestionTitle
	if title == "" {
		title = raw.Title
	}
	*q = Question{
		Title:          title,
		Kind:           ParseKind(raw.Type),
		RawType:        raw.Type,
		PromptOverride: raw.Prompt,
	}

	switch q.Kind {
	case KindOptions:
		q.Options = make([]Option, 0, len(raw.Options))
		for _, o := range raw.Options {
			q.Options = append(q.Options, o.toOption())
		}
	case KindSentence:
		for _, v := range []json.RawMessage{raw.CharacterLimit, raw.CharLimit, raw.CharLimitSnake} {
			if n, ok := parseLimit(v); ok {
				q.CharacterLimit = n
				break
			}
		}
	}
	return nil
}

type optionJSON struct {
	Label           string   `json:"label"`
	Sub             []string `json:"sub"`
	SubDemands      []string `json:"subDemands"`
	SubDemandsSnake []string `json:"sub_demands"`
}

func (o optionJSON) toOption() Option {
	subs := o.Sub
	if len(subs) == 0 {
		subs = o.SubDemands
	}
	if len(subs) == 0 {
		subs = o.SubDemandsSnake
	}
	return Option{Label: o.Label, SubDemands: subs}
}

// parseLimit reads a limit stored either as a number or a numeric string.
func parseLimit(v json.RawMessage) (int, bool) {
	if len(v) == 0 || string(v) == "null" {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(v, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// AnalysisType is a named question schema owned by one user.
type AnalysisType struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Questions Schema    `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

// OptionQuestion names an options-type question inside an analysis type.
type OptionQuestion struct {
	AnalysisType  string `json:"analysis_type"`
	QuestionTitle string `json:"question_title"`
}
