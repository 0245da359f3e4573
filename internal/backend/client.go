package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rubricon/internal/logging"
)

const submitPath = "/api/v1/grade-submission"

// Client submits grading requests and consumes the resulting event
// stream. It deliberately uses net/http rather than a wrapped client:
// the response body must be read incrementally as events arrive, not
// buffered to completion.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the grading service at baseURL. The
// timeout bounds connection establishment only; a grading stream stays
// open for as long as the job runs, so the overall request deadline
// comes from the caller's context.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: timeout,
			},
		},
	}
}

// GradeSubmission POSTs req and streams decoded events to sink until the
// stream ends or sink returns an error. A non-200 response is reported
// with as much of the body as the service sent.
func (c *Client) GradeSubmission(ctx context.Context, req SubmissionRequest, sink Sink) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding submission request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building submission request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	logging.Backend("submitting %d rubric items, %d source files for %s",
		len(req.RubricItems), len(req.SourceFiles), req.AssignmentContext.SubmissionID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submitting to grading service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("grading service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return ConsumeStream(resp.Body, sink)
}
