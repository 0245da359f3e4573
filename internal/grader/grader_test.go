package grader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubricon/internal/backend"
	"rubricon/internal/dom"
	"rubricon/internal/rubric"
)

const gradeURL = "https://grade.example.com/courses/11/assignments/22/submissions/33/grade"

func TestContextFromURL(t *testing.T) {
	courseID, assignmentID, submissionID, err := ContextFromURL(gradeURL)
	require.NoError(t, err)
	assert.Equal(t, "11", courseID)
	assert.Equal(t, "22", assignmentID)
	assert.Equal(t, "33", submissionID)

	_, _, _, err = ContextFromURL("https://grade.example.com/courses/11/assignments/22")
	require.Error(t, err)

	_, _, _, err = ContextFromURL("https://example.com/")
	require.Error(t, err)
}

type fixedScanner struct {
	model rubric.Model
}

func (f fixedScanner) Scan(dom.Page) rubric.Model { return f.model }

type recordingApplier struct {
	applied []string
	failFor string
}

func (r *recordingApplier) Apply(_ dom.Page, d backend.Decision) error {
	if d.RubricItemID == r.failFor {
		return errors.New("element went away")
	}
	r.applied = append(r.applied, d.RubricItemID)
	return nil
}

type scriptedSubmitter struct {
	req    backend.SubmissionRequest
	events []backend.Event
	err    error
}

func (s *scriptedSubmitter) GradeSubmission(_ context.Context, req backend.SubmissionRequest, sink backend.Sink) error {
	s.req = req
	for _, ev := range s.events {
		if err := sink(ev); err != nil {
			return err
		}
	}
	return s.err
}

type fixedSources struct {
	files map[string]string
	err   error
}

func (f fixedSources) FetchSources(context.Context, string, string, string) (map[string]string, error) {
	return f.files, f.err
}

func structuredModel() rubric.Model {
	return rubric.Structured{
		Items: []rubric.Item{
			{ID: "1", Description: "compiles", Points: 5, Type: rubric.Checkbox},
			{ID: "2", Description: "header", Points: 0, Type: rubric.Checkbox},
		},
		Style: rubric.StyleCheckbox,
	}
}

func decision(id string) backend.Decision {
	return backend.Decision{
		RubricItemID: id,
		Type:         "CHECKBOX",
		Verdict:      backend.Verdict{Decision: backend.DecisionCheck},
	}
}

func newTestSession(sc Scanner, ap Applier, sub Submitter, src SourceFetcher, opts Options) *Session {
	page, _ := dom.ParseHTML("<html><body></body></html>")
	return NewSession(page, gradeURL, sc, ap, sub, src, opts)
}

func TestRunAppliesStreamedDecisions(t *testing.T) {
	applier := &recordingApplier{}
	submitter := &scriptedSubmitter{events: []backend.Event{
		backend.PartialResult{Decision: decision("1")},
		backend.JobComplete{Message: "done"},
	}}
	sources := fixedSources{files: map[string]string{"main.py": "print(1)"}}

	session := newTestSession(fixedScanner{structuredModel()}, applier, submitter, sources, Options{})
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, applier.applied)
	assert.Equal(t, 1, result.Items, "zero-point item is filtered before submission")
	assert.Equal(t, 1, result.Decisions)
	assert.Equal(t, 1, result.Applied)
	assert.True(t, result.Completed)

	assert.Equal(t, "22", submitter.req.AssignmentContext.AssignmentID)
	assert.Equal(t, map[string]string{"main.py": "print(1)"}, submitter.req.SourceFiles)
}

func TestRunApplyFailureDoesNotStopStream(t *testing.T) {
	applier := &recordingApplier{failFor: "1"}
	submitter := &scriptedSubmitter{events: []backend.Event{
		backend.PartialResult{Decision: decision("1")},
		backend.PartialResult{Decision: decision("3")},
		backend.JobComplete{},
	}}
	model := rubric.Structured{
		Items: []rubric.Item{
			{ID: "1", Description: "a", Points: 5, Type: rubric.Checkbox},
			{ID: "3", Description: "b", Points: 2, Type: rubric.Checkbox},
		},
	}

	session := newTestSession(fixedScanner{model}, applier, submitter, fixedSources{files: map[string]string{}}, Options{})
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"3"}, applier.applied)
	assert.Equal(t, 2, result.Decisions)
	assert.Equal(t, 1, result.Applied)
}

func TestRunStreamErrorFailsRun(t *testing.T) {
	submitter := &scriptedSubmitter{events: []backend.Event{
		backend.PartialResult{Decision: decision("1")},
		backend.StreamError{Message: "model overloaded"},
	}}

	session := newTestSession(fixedScanner{structuredModel()}, &recordingApplier{}, submitter, fixedSources{files: map[string]string{}}, Options{})
	result, err := session.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, 1, result.Decisions, "decisions before the error still count")
}

func TestRunDryRunAppliesNothing(t *testing.T) {
	applier := &recordingApplier{}
	submitter := &scriptedSubmitter{events: []backend.Event{
		backend.PartialResult{Decision: decision("1")},
		backend.JobComplete{},
	}}

	session := newTestSession(fixedScanner{structuredModel()}, applier, submitter, fixedSources{files: map[string]string{}}, Options{DryRun: true})
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, applier.applied)
	assert.Equal(t, 1, result.Decisions)
	assert.Zero(t, result.Applied)
}

func TestRunPreconditions(t *testing.T) {
	sources := fixedSources{files: map[string]string{}}
	submitter := &scriptedSubmitter{}

	_, err := newTestSession(fixedScanner{rubric.Absent{}}, &recordingApplier{}, submitter, sources, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoRubric)

	_, err = newTestSession(fixedScanner{rubric.Manual{ScoreFieldRef: "#score"}}, &recordingApplier{}, submitter, sources, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrManualScoring)

	onlyStructural := rubric.Structured{Items: []rubric.Item{
		{ID: "1", Description: "header", Points: 0, Type: rubric.Checkbox},
	}}
	_, err = newTestSession(fixedScanner{onlyStructural}, &recordingApplier{}, submitter, sources, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNothingToGrade)
}

func TestRunBadURL(t *testing.T) {
	page, _ := dom.ParseHTML("<html></html>")
	session := NewSession(page, "https://example.com/profile", fixedScanner{structuredModel()}, &recordingApplier{}, &scriptedSubmitter{}, fixedSources{}, Options{})
	_, err := session.Run(context.Background())
	require.Error(t, err)
}

func TestRunSourceFetchFailure(t *testing.T) {
	boom := errors.New("platform 502")
	session := newTestSession(fixedScanner{structuredModel()}, &recordingApplier{}, &scriptedSubmitter{}, fixedSources{err: boom}, Options{})
	_, err := session.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunTruncatesTestFiles(t *testing.T) {
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'x'
	}
	sources := fixedSources{files: map[string]string{"test_main.py": string(long)}}
	submitter := &scriptedSubmitter{events: []backend.Event{backend.JobComplete{}}}

	session := newTestSession(fixedScanner{structuredModel()}, &recordingApplier{}, submitter, sources, Options{TestFileCharCap: 2000})
	_, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, submitter.req.SourceFiles["test_main.py"], "[truncated at 2000 chars]")
}
