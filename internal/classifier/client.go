// Package classifier calls the external AI classification service and
// applies its verdicts to threads in the background.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/welldanyogia/webrana-inbox-backend/internal/errors"
	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
)

// maxContentBytes caps the content sent for classification
const maxContentBytes = 16 * 1024

// Classifier classifies email content
type Classifier interface {
	Classify(ctx context.Context, content string) (*models.Classification, error)
}

// ClientConfig configures the HTTP classification client
type ClientConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client calls the classification service over HTTP with a JSON body
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

type classifyRequest struct {
	Content string `json:"content"`
}

type classifyResponse struct {
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient creates a Client
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Classify posts content and decodes the verdict. Failures are returned as
// *errors.ClassificationError with Retryable set for transient conditions.
func (c *Client) Classify(ctx context.Context, content string) (*models.Classification, error) {
	content = truncateContent(content, maxContentBytes)
	body, err := json.Marshal(classifyRequest{Content: content})
	if err != nil {
		return nil, &apperrors.ClassificationError{Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &apperrors.ClassificationError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// context cancellation by the caller is final, timeouts are not
		retryable := !errors.Is(err, context.Canceled)
		return nil, &apperrors.ClassificationError{Retryable: retryable, Err: fmt.Errorf("calling classifier: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperrors.ClassificationError{StatusCode: resp.StatusCode, Retryable: true, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apperrors.ClassificationError{
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
			Err:        errors.New(errorMessage(respBody)),
		}
	}

	var result classifyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &apperrors.ClassificationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	priority := models.Priority(strings.ToLower(strings.TrimSpace(result.Priority)))
	if !priority.Valid() {
		return nil, &apperrors.ClassificationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unknown priority %q", result.Priority)}
	}
	return &models.Classification{
		Category:   strings.TrimSpace(result.Category),
		Priority:   priority,
		Confidence: result.Confidence,
	}, nil
}

// retryableStatus treats throttling, timeouts and server errors as transient.
// 401/403 and other client errors are permanent.
func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

func errorMessage(body []byte) string {
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return "empty response"
	}
	return msg
}

// truncateContent cuts s to at most limit bytes without splitting a rune
func truncateContent(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
