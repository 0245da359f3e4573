package grader

import (
	"fmt"
	"regexp"
)

// gradeURLPattern matches the grading page URL shape:
// .../courses/{course}/assignments/{assignment}/submissions/{submission}/grade
var gradeURLPattern = regexp.MustCompile(`/courses/(\d+)/assignments/(\d+)/submissions/(\d+)`)

// ContextFromURL derives the assignment context from a grading page URL.
// The numeric IDs in the path are authoritative; query strings and
// fragments are ignored.
func ContextFromURL(url string) (courseID, assignmentID, submissionID string, err error) {
	m := gradeURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", "", fmt.Errorf("not a grading page URL: %s", url)
	}
	return m[1], m[2], m[3], nil
}
