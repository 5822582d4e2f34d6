package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/ai"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/ai/prompt"
)

const DefaultModel = "gemini-2.5-flash-lite"

type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0)
	m.SetMaxOutputTokens(2048)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = genai.NewUserContent(genai.Text(prompt.SystemPrompt()))

	return &Client{client: client, model: m}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Complete implementasi ai.Client
func (c *Client) Complete(ctx context.Context, userPrompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return "", ai.Failed("gemini", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ai.Empty("gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ai.Empty("gemini")
	}
	return out, nil
}
