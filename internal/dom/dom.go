// Package dom defines the page capability consumed by the rubric engine.
// Two implementations exist: a full one backed by a live Chrome tab (rod.go)
// and a read-only one over parsed HTML (static.go). Callers pick one at
// construction time; nothing in the engine inspects which it got.
package dom

import (
	"errors"
	"strings"
)

// ErrReadOnly is returned by interaction methods on the DOM-only implementation.
var ErrReadOnly = errors.New("dom: page is read-only")

// Queryable scopes CSS selector queries to a document or subtree.
type Queryable interface {
	// Query returns the first element matching the selector, if any.
	// It never waits for the element to appear.
	Query(selector string) (Element, bool)
	// QueryAll returns all elements matching the selector in document order.
	QueryAll(selector string) []Element
}

// Page is the document-scoped capability.
type Page interface {
	Queryable
}

// Element is a single DOM node. Interaction methods (Click) are part of the
// full capability; the DOM-only implementation returns ErrReadOnly from them.
type Element interface {
	Queryable

	// Tag returns the lower-case tag name.
	Tag() string
	// Attr returns an attribute value and whether the attribute exists.
	// An empty value with true is a present-but-empty attribute.
	Attr(name string) (string, bool)
	// Text returns the node's trimmed text content.
	Text() string
	// Matches reports whether the element matches the selector.
	Matches(selector string) bool
	// Checked reports the live checked state of a native toggle control.
	Checked() bool
	// Parent returns the parent element, if any.
	Parent() (Element, bool)

	// Click activates the element once.
	Click() error
}

// FirstText runs an ordered-selector lookup for text content under scope.
// The first selector that matches an element with non-empty text wins.
// The second return distinguishes "no selector matched anything" (false)
// from "an element matched but its text was empty" (true with "").
func FirstText(scope Queryable, selectors ...string) (string, bool) {
	matched := false
	for _, sel := range selectors {
		el, ok := scope.Query(sel)
		if !ok {
			continue
		}
		matched = true
		if txt := strings.TrimSpace(el.Text()); txt != "" {
			return txt, true
		}
	}
	return "", matched
}

// FirstAttr runs an ordered-selector lookup for an attribute value under scope.
// Same absence semantics as FirstText.
func FirstAttr(scope Queryable, attr string, selectors ...string) (string, bool) {
	matched := false
	for _, sel := range selectors {
		el, ok := scope.Query(sel)
		if !ok {
			continue
		}
		if v, has := el.Attr(attr); has {
			matched = true
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
	}
	return "", matched
}
