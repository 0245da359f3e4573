package dom

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodPage is the full page capability backed by a live Chrome tab.
type RodPage struct {
	page *rod.Page
}

// Attach connects to a running Chrome via its DevTools control URL and wraps
// the first page whose URL contains urlSubstr. An empty urlSubstr wraps the
// first open page.
func Attach(ctx context.Context, controlURL, urlSubstr string) (*RodPage, *rod.Browser, error) {
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}

	pages, err := browser.Pages()
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if urlSubstr == "" || strings.Contains(info.URL, urlSubstr) {
			return &RodPage{page: p.Context(ctx)}, browser, nil
		}
	}
	_ = browser.Close()
	return nil, nil, fmt.Errorf("no open page matching %q", urlSubstr)
}

// Launch starts a fresh Chrome, navigates it to url, and wraps the page.
func Launch(ctx context.Context, headless bool, url string) (*RodPage, *rod.Browser, error) {
	controlURL, err := launcher.New().Headless(headless).Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("open page: %w", err)
	}
	return &RodPage{page: page.Context(ctx)}, browser, nil
}

// WrapPage wraps an already-obtained rod page.
func WrapPage(page *rod.Page) *RodPage {
	return &RodPage{page: page}
}

// URL returns the page's current URL.
func (p *RodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Query returns the first element matching the selector without waiting.
func (p *RodPage) Query(selector string) (Element, bool) {
	has, el, err := p.page.Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return &RodElement{el: el}, true
}

// QueryAll returns all elements matching the selector.
func (p *RodPage) QueryAll(selector string) []Element {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &RodElement{el: el})
	}
	return out
}

// RodElement is a live DOM node.
type RodElement struct {
	el *rod.Element
}

// Query returns the first descendant matching the selector without waiting.
func (e *RodElement) Query(selector string) (Element, bool) {
	has, el, err := e.el.Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return &RodElement{el: el}, true
}

// QueryAll returns all descendants matching the selector.
func (e *RodElement) QueryAll(selector string) []Element {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &RodElement{el: el})
	}
	return out
}

// Tag returns the lower-case tag name.
func (e *RodElement) Tag() string {
	obj, err := e.el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return obj.Value.String()
}

// Attr returns an attribute value and whether it exists.
func (e *RodElement) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

// Text returns the element's visible text, whitespace-normalized.
func (e *RodElement) Text() string {
	txt, err := e.el.Text()
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(txt), " ")
}

// Matches reports whether the element matches the selector.
func (e *RodElement) Matches(selector string) bool {
	ok, err := e.el.Matches(selector)
	if err != nil {
		return false
	}
	return ok
}

// Checked reads the live checked property, which tracks user interaction
// unlike the serialized attribute.
func (e *RodElement) Checked() bool {
	v, err := e.el.Property("checked")
	if err != nil {
		return false
	}
	return v.Bool()
}

// Parent returns the parent element, if any.
func (e *RodElement) Parent() (Element, bool) {
	p, err := e.el.Parent()
	if err != nil {
		return nil, false
	}
	return &RodElement{el: p}, true
}

// Click activates the element with a single left click.
func (e *RodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}
