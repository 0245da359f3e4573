// Package scanner classifies and extracts the on-page rubric. The host page
// has shipped four incompatible representations; detection runs in priority
// order and degrades to Absent instead of failing.
package scanner

import (
	"encoding/base64"
	"strings"

	"rubricon/internal/accordion"
	"rubricon/internal/dom"
	"rubricon/internal/logging"
	"rubricon/internal/rubric"
)

// Selector fallbacks, first non-empty match wins.
var (
	// Embedded JSON blob carriers, base64-encoded.
	embeddedSelectors = []string{
		"script[data-rubric-props]",
		"[data-react-props]",
		"script[type=\"application/rubric+json\"]",
	}
	embeddedAttrs = []string{"data-rubric-props", "data-react-props"}

	itemSelector  = ".rubricItem"
	groupSelector = ".rubricItemGroup, [data-rubric-group]"

	// Ancestors that mark an element as part of a group's rendered options
	// rather than a flat item.
	groupScopeSelector = ".rubricItemGroup, .rubricItemGroup--rubricItems, [role=radiogroup]"

	idAttrs = []string{"data-rubric-item-id", "data-item-id", "id"}

	descriptionSelectors = []string{
		".rubricField-description",
		".description",
		"[data-description]",
	}
	pointsSelectors = []string{
		".rubricField-points",
		".points",
		"[data-points]",
	}

	manualScoreSelectors = []string{
		"input[type=number][name=score]",
		"input.score-input",
		"#question_submission_score",
	}
)

// idPrefixes are stripped from raw element ids to recover the item id.
var idPrefixes = []string{"rubric-item-", "rubric_item_", "item-"}

// Scanner extracts the rubric model from a page. Grouped items are
// delegated to the accordion controller.
type Scanner struct {
	ctrl *accordion.Controller
}

// New creates a scanner using the given accordion controller.
func New(ctrl *accordion.Controller) *Scanner {
	return &Scanner{ctrl: ctrl}
}

// Scan returns the canonical rubric model for the current page. It never
// fails: pages without a recognizable rubric yield Absent.
func (s *Scanner) Scan(page dom.Page) rubric.Model {
	timer := logging.StartTimer(logging.CategoryScanner, "Scan")
	defer timer.Stop()

	// Priority 1: embedded JSON blob. Parseable and non-empty wins outright.
	if items, style, ok := s.scanEmbedded(page); ok {
		logging.Scanner("embedded rubric: %d items, style %s", len(items), style)
		return rubric.Structured{Items: items, Style: style}
	}

	// Priority 2 and 3: flat items and grouped radio elements.
	flat := s.scanFlatItems(page)
	groups := s.scanGroups(page)

	if len(flat) > 0 || len(groups) > 0 {
		items := rubric.Dedupe(append(flat, groups...))
		style := rubric.DeriveStyle(len(flat), len(groups))
		logging.Scanner("dom rubric: %d flat, %d groups, style %s", len(flat), len(groups), style)
		return rubric.Structured{Items: items, Style: style}
	}

	// Priority 4: a manual numeric score field.
	for _, sel := range manualScoreSelectors {
		if _, ok := page.Query(sel); ok {
			logging.Scanner("manual score field detected: %s", sel)
			return rubric.Manual{ScoreFieldRef: sel}
		}
	}

	logging.Scanner("no rubric detected")
	return rubric.Absent{}
}

// scanEmbedded looks for the base64-encoded JSON blob. Malformed payloads
// fall through silently to DOM extraction.
func (s *Scanner) scanEmbedded(page dom.Page) ([]rubric.Item, rubric.Style, bool) {
	for _, sel := range embeddedSelectors {
		el, ok := page.Query(sel)
		if !ok {
			continue
		}
		payload := ""
		for _, attr := range embeddedAttrs {
			if v, ok := el.Attr(attr); ok && v != "" {
				payload = v
				break
			}
		}
		if payload == "" {
			payload = el.Text()
		}
		if payload == "" {
			continue
		}

		raw, err := decodeBase64(payload)
		if err != nil {
			logging.ScannerDebug("embedded blob not decodable: %v", err)
			continue
		}
		items, style, err := rubric.BuildFromEmbedded(raw)
		if err != nil {
			logging.ScannerDebug("embedded blob not usable: %v", err)
			continue
		}
		return items, style, true
	}
	return nil, rubric.StyleCheckbox, false
}

// decodeBase64 tolerates the padding variants the host page has produced.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// scanFlatItems extracts ungrouped rubric items.
func (s *Scanner) scanFlatItems(page dom.Page) []rubric.Item {
	var items []rubric.Item
	for _, el := range page.QueryAll(itemSelector) {
		if el.Matches(groupSelector) || insideGroup(el) {
			continue
		}
		id, ok := itemID(el)
		if !ok {
			logging.ScannerWarn("flat item without id skipped")
			continue
		}
		desc, _ := dom.FirstText(el, descriptionSelectors...)
		points := 0.0
		if txt, ok := dom.FirstText(el, pointsSelectors...); ok {
			points = accordion.ParsePoints(txt)
		}
		selected := accordion.IsApplied(el)
		items = append(items, rubric.Item{
			ID:          id,
			Description: desc,
			Points:      points,
			Type:        rubric.Checkbox,
			Selected:    &selected,
		})
	}
	return items
}

// scanGroups extracts grouped radio items via the accordion protocol.
// A single group's failure is isolated: it is logged and skipped.
func (s *Scanner) scanGroups(page dom.Page) []rubric.Item {
	var items []rubric.Item
	for _, group := range page.QueryAll(groupSelector) {
		id, ok := itemID(group)
		if !ok {
			logging.ScannerWarn("group without id skipped")
			continue
		}
		desc, _ := dom.FirstText(group, descriptionSelectors...)
		points := 0.0
		if txt, ok := dom.FirstText(group, pointsSelectors...); ok {
			points = accordion.ParsePoints(txt)
		}

		set, err := s.ctrl.ReadOptions(page, group)
		if err != nil {
			logging.ScannerWarn("group %s options unreadable: %v", id, err)
			continue
		}
		_, anySelected := set.SelectedKey()
		items = append(items, rubric.Item{
			ID:          id,
			Description: desc,
			Points:      points,
			Type:        rubric.Radio,
			Selected:    &anySelected,
			Options:     set,
		})
	}
	return items
}

// itemID resolves an item or group id through the attribute fallback list.
func itemID(el dom.Element) (string, bool) {
	for _, attr := range idAttrs {
		v, ok := el.Attr(attr)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if attr == "id" {
			for _, p := range idPrefixes {
				if strings.HasPrefix(v, p) {
					v = strings.TrimPrefix(v, p)
					break
				}
			}
		}
		return v, true
	}
	return "", false
}

// insideGroup reports whether an element sits inside a group's subtree.
func insideGroup(el dom.Element) bool {
	for parent, ok := el.Parent(); ok; parent, ok = parent.Parent() {
		if parent.Matches(groupScopeSelector) {
			return true
		}
	}
	return false
}
