// Package grader orchestrates one grading session end to end: rubric
// extraction from the page, submission to the grading service, and
// streamed decision application back onto the page.
package grader

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rubricon/internal/backend"
	"rubricon/internal/dom"
	"rubricon/internal/logging"
	"rubricon/internal/rubric"
)

// Session precondition failures.
var (
	ErrNoRubric       = errors.New("grader: no rubric found on page")
	ErrManualScoring  = errors.New("grader: page uses manual score entry, nothing to automate")
	ErrNothingToGrade = errors.New("grader: no gradable rubric items after filtering")
)

// Scanner extracts the page's rubric model.
type Scanner interface {
	Scan(page dom.Page) rubric.Model
}

// Applier carries a grading decision onto the page.
type Applier interface {
	Apply(page dom.Page, decision backend.Decision) error
}

// Submitter sends a grading request and streams decisions back.
type Submitter interface {
	GradeSubmission(ctx context.Context, req backend.SubmissionRequest, sink backend.Sink) error
}

// Session runs one submission through the grading pipeline.
type Session struct {
	page      dom.Page
	pageURL   string
	scanner   Scanner
	applier   Applier
	submitter Submitter
	sources   SourceFetcher
	charCap   int
	dryRun    bool
}

// Options configures a Session beyond its collaborators.
type Options struct {
	// TestFileCharCap truncates test files in the submission payload.
	TestFileCharCap int
	// DryRun submits and streams but applies nothing to the page.
	DryRun bool
}

func NewSession(page dom.Page, pageURL string, sc Scanner, ap Applier, sub Submitter, src SourceFetcher, opts Options) *Session {
	return &Session{
		page:      page,
		pageURL:   pageURL,
		scanner:   sc,
		applier:   ap,
		submitter: sub,
		sources:   src,
		charCap:   opts.TestFileCharCap,
		dryRun:    opts.DryRun,
	}
}

// Result summarizes a completed session.
type Result struct {
	Items     int // rubric items submitted
	Decisions int // decisions received
	Applied   int // decisions applied to the page
	Completed bool
}

// Run executes the session. Decisions are applied in arrival order; an
// application failure on one item does not stop the stream, but a
// terminal error event from the service fails the run.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	courseID, assignmentID, submissionID, err := ContextFromURL(s.pageURL)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()[:8]
	logging.Grade("session %s start: course %s assignment %s submission %s", runID, courseID, assignmentID, submissionID)

	items, err := s.extractItems()
	if err != nil {
		return nil, err
	}

	wire := backend.Convert(items)
	if len(wire) == 0 {
		return nil, ErrNothingToGrade
	}

	files, err := s.sources.FetchSources(ctx, courseID, assignmentID, submissionID)
	if err != nil {
		return nil, err
	}

	req := backend.SubmissionRequest{
		AssignmentContext: backend.AssignmentContext{
			CourseID:     courseID,
			AssignmentID: assignmentID,
			SubmissionID: submissionID,
		},
		SourceFiles: backend.PrepareSources(files, s.charCap),
		RubricItems: wire,
	}

	result := &Result{Items: len(wire)}
	var streamErr error
	err = s.submitter.GradeSubmission(ctx, req, func(ev backend.Event) error {
		switch e := ev.(type) {
		case backend.PartialResult:
			result.Decisions++
			if s.dryRun {
				logging.Grade("dry run: would apply decision for item %s", e.Decision.RubricItemID)
				return nil
			}
			if err := s.applier.Apply(s.page, e.Decision); err != nil {
				logging.GradeWarn("failed to apply decision for item %s: %v", e.Decision.RubricItemID, err)
				return nil
			}
			result.Applied++
		case backend.JobComplete:
			result.Completed = true
			logging.Grade("session %s complete: %s", runID, e.Message)
		case backend.StreamError:
			streamErr = fmt.Errorf("grading service error: %s", e.Message)
			logging.GradeError("grading service reported: %s", e.Message)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if streamErr != nil {
		return result, streamErr
	}
	return result, nil
}

// extractItems scans the page and rejects pages this tool cannot grade.
func (s *Session) extractItems() ([]rubric.Item, error) {
	switch model := s.scanner.Scan(s.page).(type) {
	case rubric.Structured:
		logging.Grade("extracted %d rubric items (%s style)", len(model.Items), model.Style)
		return model.Items, nil
	case rubric.Manual:
		return nil, ErrManualScoring
	default:
		return nil, ErrNoRubric
	}
}
