package dom

import (
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// StaticPage is the DOM-only page capability over parsed HTML.
// It supports queries and attribute reads but no interaction; Click
// returns ErrReadOnly. Used for offline extraction and in tests.
type StaticPage struct {
	root *html.Node
}

// ParseHTML parses an HTML string into a StaticPage.
func ParseHTML(src string) (*StaticPage, error) {
	return ParseReader(strings.NewReader(src))
}

// ParseReader parses an HTML document into a StaticPage.
func ParseReader(r io.Reader) (*StaticPage, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &StaticPage{root: root}, nil
}

// Query returns the first element matching the selector.
func (p *StaticPage) Query(selector string) (Element, bool) {
	return staticQuery(p.root, selector)
}

// QueryAll returns all elements matching the selector in document order.
func (p *StaticPage) QueryAll(selector string) []Element {
	return staticQueryAll(p.root, selector)
}

// StaticElement is a single node of a StaticPage.
type StaticElement struct {
	node *html.Node
}

func staticQuery(scope *html.Node, selector string) (Element, bool) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, false
	}
	n := sel.MatchFirst(scope)
	if n == nil {
		return nil, false
	}
	return &StaticElement{node: n}, true
}

func staticQueryAll(scope *html.Node, selector string) []Element {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	var out []Element
	for _, n := range sel.MatchAll(scope) {
		out = append(out, &StaticElement{node: n})
	}
	return out
}

// Query returns the first descendant matching the selector.
func (e *StaticElement) Query(selector string) (Element, bool) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, false
	}
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if n := matchFirstIncluding(c, sel); n != nil {
			return &StaticElement{node: n}, true
		}
	}
	return nil, false
}

// QueryAll returns all descendants matching the selector.
func (e *StaticElement) QueryAll(selector string) []Element {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	var out []Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		collectMatches(c, sel, &out)
	}
	return out
}

// matchFirstIncluding matches n itself or its first matching descendant.
func matchFirstIncluding(n *html.Node, sel cascadia.Selector) *html.Node {
	if n.Type == html.ElementNode && sel.Match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := matchFirstIncluding(c, sel); m != nil {
			return m
		}
	}
	return nil
}

func collectMatches(n *html.Node, sel cascadia.Selector, out *[]Element) {
	if n.Type == html.ElementNode && sel.Match(n) {
		*out = append(*out, &StaticElement{node: n})
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMatches(c, sel, out)
	}
}

// Tag returns the lower-case tag name.
func (e *StaticElement) Tag() string {
	return strings.ToLower(e.node.Data)
}

// Attr returns an attribute value and whether it exists.
func (e *StaticElement) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// Text returns the concatenated, trimmed text content of the subtree.
func (e *StaticElement) Text() string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(e.node)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Matches reports whether the element matches the selector.
func (e *StaticElement) Matches(selector string) bool {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return false
	}
	return e.node.Type == html.ElementNode && sel.Match(e.node)
}

// Checked reports the checked attribute for static markup. Parsed HTML has
// no live property state, so this reads the serialized attribute only.
func (e *StaticElement) Checked() bool {
	v, ok := e.Attr("checked")
	if !ok {
		return false
	}
	return !strings.EqualFold(v, "false")
}

// Parent returns the parent element, if any.
func (e *StaticElement) Parent() (Element, bool) {
	p := e.node.Parent
	for p != nil && p.Type != html.ElementNode {
		p = p.Parent
	}
	if p == nil {
		return nil, false
	}
	return &StaticElement{node: p}, true
}

// Click is unsupported on the DOM-only capability.
func (e *StaticElement) Click() error {
	return ErrReadOnly
}
