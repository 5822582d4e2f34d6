package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/transcript-auditor/internal/domain/ai"
)

// Request is the body accepted by a relay server's /analyze endpoint.
type Request struct {
	Transcript string `json:"transcript"`
	Prompt     string `json:"prompt"`
}

// Response carries either the model text or, on failure, an error message.
type Response struct {
	Output string `json:"output"`
}

// Client calls a remote relay that owns the model credentials.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{Endpoint: endpoint, HTTP: &http.Client{Timeout: timeout}}
}

// errorPrefixes mark outputs the relay returns with a success status when the
// upstream model call failed.
var errorPrefixes = []string{"error:", "missing or invalid", "no valid response", "groq api error"}

// Complete implementasi ai.Client. The built prompt already embeds the
// transcript, so it fills both fields.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Analyze(ctx, Request{Transcript: prompt, Prompt: prompt})
}

// Analyze sends one request and maps the reply to ai errors.
func (c *Client) Analyze(ctx context.Context, in Request) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", ai.Failed("relay", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", ai.Failed("relay", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", ai.Failed("relay", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", ai.Failed("relay", err)
	}
	var out Response
	decodeErr := json.Unmarshal(raw, &out)

	// status first, the body of an error page may not be JSON
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ai.Failed("relay", fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, errorText(out, raw, decodeErr)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ai.Failed("relay", fmt.Errorf("status %d: %s", resp.StatusCode, errorText(out, raw, decodeErr)))
	}
	if decodeErr != nil {
		return "", ai.Failed("relay", fmt.Errorf("invalid body: %w", decodeErr))
	}

	text := strings.TrimSpace(out.Output)
	if text == "" {
		return "", ai.Empty("relay")
	}
	lower := strings.ToLower(text)
	for _, p := range errorPrefixes {
		if strings.HasPrefix(lower, p) {
			return "", ai.Failed("relay", fmt.Errorf("%s", text))
		}
	}
	return text, nil
}

func errorText(out Response, raw []byte, decodeErr error) string {
	if decodeErr == nil && out.Output != "" {
		return out.Output
	}
	return strings.TrimSpace(string(raw))
}
