// Package backend speaks the grading service's wire protocol: one JSON
// submission request and a line-oriented event stream in response.
package backend

// AssignmentContext identifies the course, assignment, and submission
// being graded.
type AssignmentContext struct {
	CourseID       string `json:"course_id"`
	AssignmentID   string `json:"assignment_id"`
	SubmissionID   string `json:"submission_id"`
	AssignmentName string `json:"assignment_name,omitempty"`
}

// WireItem is one rubric item in backend format, filtered and sorted.
type WireItem struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Points      float64           `json:"points"`
	Type        string            `json:"type"`
	Options     map[string]string `json:"options,omitempty"`
}

// SubmissionRequest is the grading request body.
type SubmissionRequest struct {
	AssignmentContext AssignmentContext `json:"assignment_context"`
	SourceFiles       map[string]string `json:"source_files"`
	RubricItems       []WireItem        `json:"rubric_items"`
}

// Evidence locates supporting code for a verdict.
type Evidence struct {
	File  string `json:"file"`
	Lines string `json:"lines"`
}

// Verdict carries the per-item outcome. Decision is present for CHECKBOX
// items, SelectedOption for RADIO items.
type Verdict struct {
	Decision       string   `json:"decision,omitempty"`
	SelectedOption string   `json:"selected_option,omitempty"`
	Comment        string   `json:"comment"`
	Evidence       Evidence `json:"evidence"`
}

// Checkbox verdict decisions.
const (
	DecisionCheck   = "check"
	DecisionUncheck = "uncheck"
)

// Decision is the grading service's final call on one rubric item.
type Decision struct {
	RubricItemID string  `json:"rubric_item_id"`
	Type         string  `json:"type"`
	Confidence   float64 `json:"confidence"`
	Verdict      Verdict `json:"verdict"`
}

// Event is one decoded stream event. Exactly one concrete type applies;
// consumers switch exhaustively.
type Event interface {
	isEvent()
}

// PartialResult carries one grading decision as soon as it is available.
type PartialResult struct {
	Decision Decision
}

// JobComplete is the stream's success terminal.
type JobComplete struct {
	Message string
}

// StreamError is the stream's failure terminal.
type StreamError struct {
	Message string
}

func (PartialResult) isEvent() {}
func (JobComplete) isEvent()   {}
func (StreamError) isEvent()   {}
