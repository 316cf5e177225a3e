package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/terra-clan/studyhub/internal/models"
)

// LearnerHeader carries the learner identity on every request
const LearnerHeader = "X-Learner-ID"

// APIError is returned when the server answers with an error envelope
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Code, e.Message)
}

// Client is a Go SDK for the studyhub API
type Client struct {
	baseURL    string
	learnerID  string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new studyhub client acting as learnerID. An empty
// learnerID lets the server assign one; it is then reused for later calls.
func NewClient(baseURL, learnerID string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		learnerID: learnerID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LearnerID returns the identity the client sends
func (c *Client) LearnerID() string {
	return c.learnerID
}

// Catalog lists resources matching query; an empty query lists everything
func (c *Client) Catalog(ctx context.Context, query string) (*models.CatalogResponse, error) {
	path := "/api/v1/catalog/"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}

	var out models.CatalogResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preview asks how a resource path can be shown inline
func (c *Client) Preview(ctx context.Context, path string) (*models.Preview, error) {
	var out models.Preview
	if err := c.do(ctx, http.MethodGet, "/api/v1/catalog/preview?path="+url.QueryEscape(path), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress returns the learner's counters and badges
func (c *Client) Progress(ctx context.Context) (*models.ProgressResponse, error) {
	var out models.ProgressResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/progress/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Record records one event and returns the badges it unlocked
func (c *Client) Record(ctx context.Context, event models.EventType) (*models.RecordResponse, error) {
	var out models.RecordResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/progress/"+url.PathEscape(string(event)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartQuiz begins a new quiz session
func (c *Client) StartQuiz(ctx context.Context) (*models.QuizState, error) {
	var out models.QuizState
	if err := c.do(ctx, http.MethodPost, "/api/v1/quiz/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quiz returns the current state of a quiz session
func (c *Client) Quiz(ctx context.Context, id string) (*models.QuizState, error) {
	var out models.QuizState
	if err := c.do(ctx, http.MethodGet, "/api/v1/quiz/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Answer submits a choice for the current question
func (c *Client) Answer(ctx context.Context, id string, req models.AnswerRequest) (*models.AnswerResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var out models.AnswerResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/quiz/"+url.PathEscape(id)+"/answer", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// do performs an HTTP request and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.learnerID != "" {
		req.Header.Set(LearnerHeader, c.learnerID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if id := resp.Header.Get(LearnerHeader); id != "" && c.learnerID == "" {
		c.learnerID = id
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if result.Error != nil {
			apiErr.Code, apiErr.Message = result.Error.Code, result.Error.Message
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
