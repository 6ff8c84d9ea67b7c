package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/terra-clan/progression-engine/internal/models"
)

// Client is a Go SDK for progression-engine API
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient creates a new progression-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error returned by the server in the response envelope
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s - %s", e.StatusCode, e.Code, e.Message)
}

// CourseList is the course listing response
type CourseList struct {
	Courses []models.CourseSummary `json:"courses"`
	Total   int                    `json:"total"`
}

// MatchList is the job match listing response
type MatchList struct {
	Matches []*models.JobMatch `json:"matches"`
	Total   int                `json:"total"`
}

// ListCourses lists active courses. candidateID is optional; when set each
// course carries the candidate's completion state.
func (c *Client) ListCourses(ctx context.Context, candidateID string) (*CourseList, error) {
	path := "/api/v1/courses/"
	if candidateID != "" {
		path += "?candidate_id=" + url.QueryEscape(candidateID)
	}

	var result CourseList
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCourseView retrieves a course annotated with the candidate's progress
func (c *Client) GetCourseView(ctx context.Context, courseID, candidateID string) (*models.CourseDetailView, error) {
	path := fmt.Sprintf("/api/v1/courses/%s?candidate_id=%s", url.PathEscape(courseID), url.QueryEscape(candidateID))

	var view models.CourseDetailView
	if err := c.call(ctx, http.MethodGet, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetTask retrieves a task by ID
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := c.call(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteTask records a content task completion
func (c *Client) CompleteTask(ctx context.Context, candidateID, taskID string) (*models.CompleteTaskResult, error) {
	req := models.CompleteTaskRequest{CandidateID: candidateID, TaskID: taskID}

	var result models.CompleteTaskResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/progress/tasks/complete", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitAssessment submits an answer to an assessment task
func (c *Client) SubmitAssessment(ctx context.Context, req models.SubmitAssessmentRequest) (*models.SubmissionResult, error) {
	var result models.SubmissionResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/progress/assessments/submit", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListMatches lists the candidate's job matches, best first
func (c *Client) ListMatches(ctx context.Context, candidateID string) (*MatchList, error) {
	path := fmt.Sprintf("/api/v1/candidates/%s/matches", url.PathEscape(candidateID))

	var result MatchList
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks if the API is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// call sends body as JSON and decodes the envelope's data into out
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	resp, err := c.doRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Code = "http_error"
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	return respBody, nil
}
