package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jdmirek/askhub/internal/domain/chat"
	"github.com/jdmirek/askhub/internal/observability"
)

// ErrNotConfigured is returned before any network I/O when no API key
// was supplied. Callers turn this into a 503 rather than failing boot.
var ErrNotConfigured = errors.New("gemini api key not configured")

// APIError carries the upstream error envelope for non-2xx responses.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini returned status %d (%s): %s", e.StatusCode, e.Status, e.Message)
}

// Client calls the Generative Language generateContent endpoint.
type Client struct {
	client *http.Client
	base   string
	apiKey string
	model  string
	prom   *observability.Prom
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		// Model calls can take a while on long prompts; the request ctx
		// still wins if the caller cancels earlier.
		client: &http.Client{Timeout: 90 * time.Second},
		base:   strings.TrimSuffix(baseURL, "/"),
		apiKey: apiKey,
		model:  model,
	}
}

func NewClientWithMetrics(baseURL, apiKey, model string, prom *observability.Prom) *Client {
	c := NewClient(baseURL, apiKey, model)
	c.prom = prom
	return c
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Gemini request/response payload structures

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Contents []Content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// BuildContents reshapes client-side history into the upstream wire
// format: "human" turns become "user", everything else is a "model"
// turn, order untouched, and the current question goes last as a user
// turn.
func BuildContents(question string, history []chat.Turn) []Content {
	contents := make([]Content, 0, len(history)+1)

	for _, turn := range history {
		role := "model"

		if turn.Role == chat.RoleHuman {
			role = "user"
		}

		contents = append(contents, Content{
			Role:  role,
			Parts: []Part{{Text: turn.Message}},
		})
	}

	contents = append(contents, Content{
		Role:  "user",
		Parts: []Part{{Text: question}},
	})

	return contents
}

// GenerateAnswer forwards the question plus prior turns and returns the
// model's text answer.
func (c *Client) GenerateAnswer(ctx context.Context, question string, history []chat.Turn) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var answer string

	err := c.observe(func() error {
		var innerErr error
		answer, innerErr = c.generate(ctx, question, history)
		return innerErr
	})

	return answer, err
}

func (c *Client) generate(ctx context.Context, question string, history []chat.Turn) (string, error) {
	payload := generateRequest{Contents: BuildContents(question, history)}

	b, err := json.Marshal(payload)

	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.base, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))

	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)

	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)

		return "", &APIError{
			StatusCode: resp.StatusCode,
			Status:     apiErr.Error.Status,
			Message:    apiErr.Error.Message,
		}
	}

	var body generateResponse

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates in gemini response")
	}

	// A candidate may split its answer over several parts.
	var sb strings.Builder

	for _, part := range body.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String(), nil
}

func (c *Client) observe(fn func() error) error {
	if c.prom == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	outcome := "ok"

	if err != nil {
		outcome = Classify(err).String()
	}

	c.prom.ObserveUpstreamCall(c.model, outcome, time.Since(start))

	return err
}
