package grader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// SourceFetcher retrieves a submission's source files keyed by path.
type SourceFetcher interface {
	FetchSources(ctx context.Context, courseID, assignmentID, submissionID string) (map[string]string, error)
}

// PlatformSourceFetcher pulls submission files from the host platform's
// JSON API.
type PlatformSourceFetcher struct {
	rest *resty.Client
}

func NewPlatformSourceFetcher(baseURL string, timeout time.Duration) *PlatformSourceFetcher {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &PlatformSourceFetcher{rest: rest}
}

// SetSessionCookie attaches the platform session cookie.
func (f *PlatformSourceFetcher) SetSessionCookie(name, value string) {
	f.rest.SetCookie(&http.Cookie{Name: name, Value: value})
}

type fileListResponse struct {
	Files []struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	} `json:"files"`
}

func (f *PlatformSourceFetcher) FetchSources(ctx context.Context, courseID, assignmentID, submissionID string) (map[string]string, error) {
	var body fileListResponse
	resp, err := f.rest.R().
		SetContext(ctx).
		SetResult(&body).
		ForceContentType("application/json").
		SetPathParams(map[string]string{
			"courseID":     courseID,
			"assignmentID": assignmentID,
			"submissionID": submissionID,
		}).
		Get("/api/v1/courses/{courseID}/assignments/{assignmentID}/submissions/{submissionID}/files")
	if err != nil {
		return nil, fmt.Errorf("fetching sources for submission %s: %w", submissionID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching sources for submission %s: status %d", submissionID, resp.StatusCode())
	}
	files := make(map[string]string, len(body.Files))
	for _, f := range body.Files {
		files[f.Path] = f.Content
	}
	return files, nil
}
