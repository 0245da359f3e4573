package backend

import (
	"fmt"
	"strings"
)

// Path and filename fragments that mark a file as test code. Matching is
// case-sensitive except for the lowercase fragments, which catch the
// common conventions across languages (pytest, Go, JUnit, jest).
var testFragments = []string{
	"test_", "_test", "Test",
	"test.", ".test.", "spec.", ".spec.",
	"tests/", "test/",
}

// IsTestFile reports whether a source path looks like test code.
func IsTestFile(path string) bool {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	for _, frag := range testFragments {
		if strings.HasSuffix(frag, "/") {
			if strings.Contains(path, frag) {
				return true
			}
			continue
		}
		if strings.Contains(base, frag) {
			return true
		}
	}
	return false
}

// PrepareSources shapes submission files for the grading request. Test
// files carry assertion noise that dwarfs the code under test, so their
// content is capped at charCap characters with an explicit truncation
// marker. Non-test files pass through whole. A charCap of zero or less
// disables truncation.
func PrepareSources(files map[string]string, charCap int) map[string]string {
	out := make(map[string]string, len(files))
	for path, content := range files {
		if charCap > 0 && IsTestFile(path) && len(content) > charCap {
			content = content[:charCap] + fmt.Sprintf("\n... [truncated at %d chars]", charCap)
		}
		out[path] = content
	}
	return out
}
