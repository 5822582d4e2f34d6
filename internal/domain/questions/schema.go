package questions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Schema is the ordered question list of an analysis type.
type Schema []Question

// DecodeSchema decodes a stored or submitted schema. Both a bare JSON list and
// a {"questions": [...]} envelope are accepted; anything else is ErrInvalidSchema.
func DecodeSchema(raw []byte) (Schema, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidSchema)
	}

	switch raw[0] {
	case '[':
		var s Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		return s, nil
	case '{':
		var env struct {
			Questions json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		inner := bytes.TrimSpace(env.Questions)
		if len(inner) == 0 || inner[0] != '[' {
			return nil, fmt.Errorf("%w: questions must be a list", ErrInvalidSchema)
		}
		return DecodeSchema(inner)
	default:
		return nil, fmt.Errorf("%w: expected a list of questions", ErrInvalidSchema)
	}
}

// Validate checks the preconditions for building a prompt.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidSchema)
	}
	for i, q := range s {
		if q.RawType == "" {
			return fmt.Errorf("%w: question %d has no type", ErrInvalidSchema, i+1)
		}
	}
	return nil
}

// Equal reports whether two schemas persist to the same document.
func (s Schema) Equal(other Schema) bool {
	a, errA := json.Marshal(s)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(s, other)
	}
	return bytes.Equal(a, b)
}

// OptionTitles lists the titles of options-type questions in schema order.
func (s Schema) OptionTitles() []string {
	var out []string
	for _, q := range s {
		if q.Kind == KindOptions {
			out = append(out, q.Title)
		}
	}
	return out
}
