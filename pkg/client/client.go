// Package client is a small Go client for the ImagePipe HTTP API. It wraps
// job submission, status polling and output download, carrying the caller
// identity on every request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/pkg/models"
)

const identityHeader = "X-User-ID"

// ErrNotFound is returned when the server reports the resource does not
// exist for this caller. A job owned by someone else looks exactly the same.
var ErrNotFound = errors.New("resource not found")

// APIError is a non-404 error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// File is one input in a batch submission.
type File struct {
	Name    string
	Content io.Reader
}

// Job is the server's acknowledgement of a submitted batch.
type Job struct {
	JobID     uuid.UUID   `json:"job_id"`
	OwnerID   string      `json:"owner_id"`
	Status    string      `json:"status"`
	TaskIDs   []uuid.UUID `json:"task_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

// Client talks to one ImagePipe server on behalf of one owner.
type Client struct {
	baseURL string
	ownerID string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for baseURL acting as ownerID.
func New(baseURL, ownerID string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		ownerID: ownerID,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit uploads a batch of files for operation and returns the created job.
func (c *Client) Submit(ctx context.Context, operation string, files []File) (*Job, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if operation != "" {
		if err := mw.WriteField("operation", operation); err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var job Job
	if err := c.do(req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Status fetches the aggregate view of a job.
func (c *Client) Status(ctx context.Context, jobID uuid.UUID) (*models.JobStatusView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/jobs/%s", c.baseURL, jobID), nil)
	if err != nil {
		return nil, err
	}
	var view models.JobStatusView
	if err := c.do(req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Task fetches a single task.
func (c *Client) Task(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/tasks/%s", c.baseURL, taskID), nil)
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := c.do(req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Download streams one output file of a job. The caller must close the
// returned reader.
func (c *Client) Download(ctx context.Context, jobID uuid.UUID, filename string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/files/%s/%s", c.baseURL, jobID, filename), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(identityHeader, c.ownerID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

// Poll fetches the job status repeatedly until it reaches a terminal state,
// the job turns out not to exist, or ctx is done. Transient failures are
// retried with doubling backoff; a 404 stops immediately since it will never
// heal.
func (c *Client) Poll(ctx context.Context, jobID uuid.UUID, interval time.Duration) (*models.JobStatusView, error) {
	if interval <= 0 {
		interval = time.Second
	}
	backoff := interval

	for {
		view, err := c.Status(ctx, jobID)
		switch {
		case err == nil:
			backoff = interval
			if view.Status == models.TaskStatusSuccess || view.Status == models.TaskStatusFailed {
				return view, nil
			}
		case errors.Is(err, ErrNotFound):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set(identityHeader, c.ownerID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func decodeError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: resp.Status}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
}
