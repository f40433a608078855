package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tempmail/internal/model"
)

const (
	pathNewSession = "/api/session/new"
	pathEmails     = "/api/emails"
	pathEmail      = "/api/email/"
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	// AuthMode is model.AuthModeQuery or model.AuthModeBearer.
	AuthMode string

	// APIKey, when set, is sent as X-API-Key on every request.
	APIKey string

	Timeout    time.Duration
	MaxRetries int

	Logger logrus.FieldLogger

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client is a thin HTTP client for the disposable mail service.
// It handles token transport, JSON decoding, and retry with exponential
// backoff on HTTP 429 for idempotent reads.
type Client struct {
	baseURL    string
	authMode   string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	log        logrus.FieldLogger
}

// NewClient creates a new mail service client rooted at baseURL
// (e.g., https://mail.example.com).
func NewClient(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	authMode := opts.AuthMode
	if authMode == "" {
		authMode = model.AuthModeQuery
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authMode:   authMode,
		apiKey:     opts.APIKey,
		httpClient: hc,
		maxRetries: maxRetries,
		log:        log,
	}
}

// CreateSession requests a new disposable address. It is never retried:
// a repeated POST could hand out a second mailbox.
func (c *Client) CreateSession(ctx context.Context) (*model.Session, error) {
	var resp SessionResponse
	if err := c.do(ctx, http.MethodPost, pathNewSession, "", 0, &resp); err != nil {
		return nil, err
	}
	return resp.toModel()
}

// ListMessages returns the inbox summaries for token in server order.
func (c *Client) ListMessages(ctx context.Context, token string) ([]model.MessageSummary, error) {
	var resp []EmailSummary
	if err := c.do(ctx, http.MethodGet, pathEmails, token, c.maxRetries, &resp); err != nil {
		return nil, err
	}
	out := make([]model.MessageSummary, 0, len(resp))
	for _, s := range resp {
		out = append(out, s.toModel())
	}
	return out, nil
}

// GetMessage returns the full content of message id.
func (c *Client) GetMessage(ctx context.Context, token, id string) (*model.MessageDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("message id is required")
	}
	var resp EmailDetail
	path := pathEmail + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, token, c.maxRetries, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

// do builds the request, attaches the token, handles rate limiting with
// exponential backoff, and decodes the JSON response into result.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	token string,
	maxRetries int,
	result interface{},
) error {
	reqURL, err := c.buildURL(path, token)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if token != "" && c.authMode == model.AuthModeBearer {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}
		log.WithFields(logrus.Fields{
			"status":  resp.StatusCode,
			"elapsed": time.Since(start).String(),
			"attempt": attempt,
		}).Debug("mail api request")

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
			if attempt == maxRetries {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{Method: method, Path: path}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       errorText(respBody),
			}
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

// buildURL joins path onto the base URL and, in query mode, appends the token.
func (c *Client) buildURL(path, token string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("building url for %s: %w", path, err)
	}
	if token != "" && c.authMode == model.AuthModeQuery {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// errorText extracts a readable message from an error body.
func errorText(body []byte) string {
	var er ErrorResponse
	if json.Unmarshal(body, &er) == nil {
		if er.Message != "" {
			return er.Message
		}
		if er.Error != "" {
			return er.Error
		}
	}
	text := string(bytes.TrimSpace(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
