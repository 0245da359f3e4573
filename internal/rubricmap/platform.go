package rubricmap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// PlatformClient fetches the question hierarchy over the host
// platform's JSON API.
type PlatformClient struct {
	rest *resty.Client
}

// NewPlatformClient returns a client for the platform API at baseURL.
// Requests reuse the grader's browser session cookie when one is set.
func NewPlatformClient(baseURL string, timeout time.Duration) *PlatformClient {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &PlatformClient{rest: rest}
}

// SetSessionCookie attaches the platform session cookie used for
// authenticated hierarchy reads.
func (c *PlatformClient) SetSessionCookie(name, value string) {
	c.rest.SetCookie(&http.Cookie{Name: name, Value: value})
}

type questionListResponse struct {
	Questions []struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		ParentID    *string `json:"parent_id"`
		RubricStyle string  `json:"rubric_style"`
	} `json:"questions"`
}

func (c *PlatformClient) ListQuestions(ctx context.Context, courseID, assignmentID string) ([]QuestionRef, error) {
	var body questionListResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		ForceContentType("application/json").
		SetPathParams(map[string]string{
			"courseID":     courseID,
			"assignmentID": assignmentID,
		}).
		Get("/api/v1/courses/{courseID}/assignments/{assignmentID}/questions")
	if err != nil {
		return nil, fmt.Errorf("listing questions for assignment %s: %w", assignmentID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("listing questions for assignment %s: status %d", assignmentID, resp.StatusCode())
	}
	refs := make([]QuestionRef, 0, len(body.Questions))
	for _, q := range body.Questions {
		refs = append(refs, QuestionRef{
			ID:          q.ID,
			Name:        q.Title,
			ParentID:    q.ParentID,
			RubricStyle: q.RubricStyle,
		})
	}
	return refs, nil
}

type questionItemsResponse struct {
	RubricItems []Item `json:"rubric_items"`
}

func (c *PlatformClient) QuestionItems(ctx context.Context, courseID, assignmentID, questionID string) ([]Item, error) {
	var body questionItemsResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		ForceContentType("application/json").
		SetPathParams(map[string]string{
			"courseID":     courseID,
			"assignmentID": assignmentID,
			"questionID":   questionID,
		}).
		Get("/api/v1/courses/{courseID}/assignments/{assignmentID}/questions/{questionID}/rubric_items")
	if err != nil {
		return nil, fmt.Errorf("fetching rubric items for question %s: %w", questionID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching rubric items for question %s: status %d", questionID, resp.StatusCode())
	}
	return body.RubricItems, nil
}
