package audits

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// None is the sentinel the model uses for "not applicable".
const None = "None"

// Text is a model-provided field. The "None" sentinel means absent and is kept
// distinct from an empty string.
type Text string

// IsNone reports whether the value is the absent sentinel.
func (t Text) IsNone() bool { return string(t) == None }

// Display returns the value and whether it should be shown. Only the sentinel
// is suppressed; an explicit empty string is still shown.
func (t Text) Display() (string, bool) {
	if t.IsNone() {
		return "", false
	}
	return string(t), true
}

// AnswerItem is one entry of a parsed model answer.
type AnswerItem struct {
	Title       string `json:"title"`
	Answer      Text   `json:"answer"`
	SubDemand   Text   `json:"sub_demand"`
	Description Text   `json:"description"`
}

// ModelAnswer is the structured result of one model invocation.
type ModelAnswer struct {
	Questions []AnswerItem `json:"questions"`
}

// ParseKind classifies parse failures.
type ParseKind string

const (
	ParseMalformedJSON ParseKind = "malformed_json"
	ParseInvalidShape  ParseKind = "invalid_shape"
)

// ParseError carries the raw model output for diagnostics.
type ParseError struct {
	Kind ParseKind
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model output %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("model output %s", e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseModelAnswer strictly parses model output. Entries without a title, or
// that are not objects, are dropped; a missing questions list is an error.
func ParseModelAnswer(raw string) (ModelAnswer, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		// valid JSON that is not an object is a shape problem, not a syntax one
		if json.Valid([]byte(raw)) {
			return ModelAnswer{}, &ParseError{Kind: ParseInvalidShape, Raw: raw, Err: fmt.Errorf("top level is not an object")}
		}
		return ModelAnswer{}, &ParseError{Kind: ParseMalformedJSON, Raw: raw, Err: err}
	}

	list, ok := top["questions"]
	list = bytes.TrimSpace(list)
	if !ok || len(list) == 0 || list[0] != '[' {
		return ModelAnswer{}, &ParseError{Kind: ParseInvalidShape, Raw: raw, Err: fmt.Errorf("missing questions list")}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(list, &entries); err != nil {
		return ModelAnswer{}, &ParseError{Kind: ParseInvalidShape, Raw: raw, Err: err}
	}

	out := ModelAnswer{Questions: make([]AnswerItem, 0, len(entries))}
	for _, rawEntry := range entries {
		// non-object entries are skipped like untitled ones
		var e map[string]any
		if err := json.Unmarshal(rawEntry, &e); err != nil || e == nil {
			continue
		}
		title, _ := e["title"].(string)
		if strings.TrimSpace(title) == "" {
			continue
		}
		sub, ok := e["sub_demand"]
		if !ok {
			sub = e["subDemand"]
		}
		out.Questions = append(out.Questions, AnswerItem{
			Title:       title,
			Answer:      textOf(e["answer"]),
			SubDemand:   textOf(sub),
			Description: textOf(e["description"]),
		})
	}
	return out, nil
}

// textOf keeps strings as-is, maps null/missing to "" and renders other
// scalars with their JSON text.
func textOf(v any) Text {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return Text(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Text(fmt.Sprint(x))
		}
		return Text(b)
	}
}

// Answers converts the parsed entries into rows ready to persist.
func (m ModelAnswer) Answers() []Answer {
	out := make([]Answer, 0, len(m.Questions))
	for _, q := range m.Questions {
		out = append(out, Answer{
			QuestionTitle: q.Title,
			Answer:        string(q.Answer),
			Description:   string(q.Description),
			SubDemand:     string(q.SubDemand),
		})
	}
	return out
}
