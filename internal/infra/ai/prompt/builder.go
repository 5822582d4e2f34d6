package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
)

// noneMarker fills sub_demands so the model always has one token to answer with.
const noneMarker = "None"

// block is the per-question structure serialised into the configuration section.
type block struct {
	Title     string        `json:"title"`
	Prompt    string        `json:"prompt,omitempty"`
	Type      string        `json:"type"`
	Options   []blockOption `json:"options,omitempty"`
	CharLimit int           `json:"char_limit,omitempty"`
}

type blockOption struct {
	Label      string   `json:"label"`
	SubDemands []string `json:"sub_demands"`
}

// BuildPrompt renders the user prompt for one analysis request. The output is
// a pure function of its inputs.
func BuildPrompt(schema questions.Schema, transcript string) (string, error) {
	if err := schema.Validate(); err != nil {
		return "", err
	}

	blocks := make([]block, 0, len(schema))
	for i, q := range schema {
		blocks = append(blocks, toBlock(i, q))
	}

	var cfg bytes.Buffer
	enc := json.NewEncoder(&cfg)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(blocks); err != nil {
		return "", fmt.Errorf("encode configuration: %w", err)
	}

	return fmt.Sprintf(envelope, strings.TrimRight(cfg.String(), "\n"), transcript), nil
}

func toBlock(i int, q questions.Question) block {
	title := q.Title
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Untitled Question %d", i+1)
	}
	b := block{Title: title, Prompt: q.PromptOverride}

	switch q.Kind {
	case questions.KindOptions:
		b.Type = "options"
		if len(q.Options) == 0 {
			b.Options = []blockOption{{Label: noneMarker, SubDemands: []string{}}}
			break
		}
		for _, o := range q.Options {
			subs := o.SubDemands
			if len(subs) == 0 {
				subs = []string{noneMarker}
			}
			b.Options = append(b.Options, blockOption{Label: o.Label, SubDemands: subs})
		}
	case questions.KindSentence:
		b.Type = "sentence"
		b.CharLimit = q.EffectiveCharacterLimit()
	default:
		b.Type = "unknown"
	}
	return b
}

const envelope = `You are a call transcript auditor. Use the configuration to analyze the transcript and respond in JSON format.

Configuration:
%s

Transcript:
"""
%s
"""

Strictly respond in this format:
{
  "questions": [
    {
      "title": "Question title exactly as configured",
      "answer": "Selected option label or written answer",
      "sub_demand": "Selected sub-demand of the chosen option, or None",
      "description": "Summary within char_limit for sentence questions, or None"
    }
  ]
}

Answer every configured question once, in the configured order. Use "None" for any field that does not apply.
Do NOT write paragraphs, markdown, code fences, or explanations. Only respond with pure JSON.`
