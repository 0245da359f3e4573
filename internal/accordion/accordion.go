// Package accordion drives the expand/read/collapse protocol for grouped
// (radio) rubric items. Group options are not present in the DOM until the
// group header is expanded, and the host page renders them asynchronously,
// so every read suspends for a settle delay after triggering the toggle.
//
// Expand is the acquire and collapse is the guaranteed release: WithExpanded
// collapses the group on every exit path, normal or not.
package accordion

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rubricon/internal/dom"
	"rubricon/internal/logging"
	"rubricon/internal/rubric"
)

// State is the controller's position in the expand/collapse cycle.
type State int

const (
	StateCollapsed State = iota
	StateExpanding
	StateExpanded
	StateCollapsing
)

func (s State) String() string {
	switch s {
	case StateExpanding:
		return "expanding"
	case StateExpanded:
		return "expanded"
	case StateCollapsing:
		return "collapsing"
	default:
		return "collapsed"
	}
}

// Selector fallbacks for the pieces of a group. First match wins.
var (
	toggleSelectors = []string{
		"[aria-expanded]",
		".rubricItemGroup--key",
		"button",
	}
	containerSelectors = []string{
		".rubricItemGroup--rubricItems",
		"[role=radiogroup]",
		".rubricItemGroup-options",
	}
	optionSelectors = []string{
		".rubricItem",
		"[role=radio]",
		"li",
	}
	keyControlSelectors = []string{
		".rubricField-applied",
		"[aria-pressed]",
		"button",
	}
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
)

// commentPrefix is prepended by the host page to option descriptions.
const commentPrefix = "grading comment:"

var numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// Controller performs the expand/read/collapse protocol for one group at a
// time. Driving two accordions concurrently is unsupported; callers must
// serialize groups.
type Controller struct {
	expandSettle   time.Duration
	collapseSettle time.Duration
	sleep          func(time.Duration)
	state          State
}

// New creates a controller with the given settle delays.
func New(expandSettle, collapseSettle time.Duration) *Controller {
	return &Controller{
		expandSettle:   expandSettle,
		collapseSettle: collapseSettle,
		sleep:          time.Sleep,
		state:          StateCollapsed,
	}
}

// WithSleep replaces the suspension function. Tests use this to avoid
// real delays.
func (c *Controller) WithSleep(fn func(time.Duration)) *Controller {
	c.sleep = fn
	return c
}

// State returns the controller's current protocol state.
func (c *Controller) State() State {
	return c.state
}

func (c *Controller) transition(to State) {
	logging.AccordionDebug("state %s -> %s", c.state, to)
	c.state = to
}

// toggle finds the group's expand/collapse control.
func toggle(group dom.Element) dom.Element {
	for _, sel := range toggleSelectors {
		if el, ok := group.Query(sel); ok {
			return el
		}
	}
	if group.Matches("[aria-expanded]") {
		return group
	}
	return group
}

// isCollapsed reads the toggle's reported expansion state. A missing
// aria-expanded attribute counts as collapsed.
func isCollapsed(t dom.Element) bool {
	v, ok := t.Attr("aria-expanded")
	if !ok {
		return true
	}
	return !strings.EqualFold(strings.TrimSpace(v), "true")
}

// Expand issues the expand trigger if the toggle reports a collapsed state,
// then suspends for the expand settle delay. Rendering of the options is
// asynchronous and not observable synchronously, so the delay is mandatory
// after a trigger.
func (c *Controller) Expand(group dom.Element) error {
	t := toggle(group)
	if !isCollapsed(t) {
		c.transition(StateExpanded)
		return nil
	}
	c.transition(StateExpanding)
	if err := t.Click(); err != nil {
		c.transition(StateCollapsed)
		return fmt.Errorf("expand group: %w", err)
	}
	c.sleep(c.expandSettle)
	c.transition(StateExpanded)
	return nil
}

// Collapse issues the collapse trigger if the toggle reports an expanded
// state, then suspends for the shorter collapse settle delay.
func (c *Controller) Collapse(group dom.Element) error {
	t := toggle(group)
	if isCollapsed(t) {
		c.transition(StateCollapsed)
		return nil
	}
	c.transition(StateCollapsing)
	if err := t.Click(); err != nil {
		if errors.Is(err, dom.ErrReadOnly) {
			// A read-only page cannot change expansion state anyway.
			c.transition(StateCollapsed)
			return nil
		}
		c.transition(StateCollapsed)
		return fmt.Errorf("collapse group: %w", err)
	}
	c.sleep(c.collapseSettle)
	c.transition(StateCollapsed)
	return nil
}

// WithExpanded expands the group, runs fn, and collapses the group on every
// exit path including a panic inside fn. A collapse failure is logged and
// reported only when fn itself succeeded.
func (c *Controller) WithExpanded(group dom.Element, fn func() error) (err error) {
	if err := c.Expand(group); err != nil {
		return err
	}
	defer func() {
		cerr := c.Collapse(group)
		if cerr != nil {
			logging.AccordionWarn("collapse after read failed: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()
	return fn()
}

// OptionControl is one freshly rendered option with its activation control.
// Valid only while the owning group is expanded.
type OptionControl struct {
	Key         string
	Description string
	Points      float64
	Applied     bool
	Control     dom.Element
}

// OptionControls locates and parses the group's rendered options. The group
// must already be expanded. Empty descriptions are skipped; keys are
// assigned in DOM order from the keyboard row and capped at its length.
func (c *Controller) OptionControls(page dom.Page, group dom.Element) ([]OptionControl, error) {
	container, ok := optionsContainer(page, group)
	if !ok {
		return nil, fmt.Errorf("options container not found")
	}

	var options []OptionControl
	for _, sel := range optionSelectors {
		els := container.QueryAll(sel)
		if len(els) == 0 {
			continue
		}
		for _, el := range els {
			desc, ok := optionDescription(el)
			if !ok || desc == "" {
				continue
			}
			key, ok := rubric.KeyFor(len(options))
			if !ok {
				logging.AccordionWarn("group has more options than keyboard keys, truncating")
				break
			}
			options = append(options, OptionControl{
				Key:         key,
				Description: desc,
				Points:      optionPoints(el),
				Applied:     IsApplied(el),
				Control:     KeyControl(el),
			})
		}
		break
	}
	return options, nil
}

// ReadOptions runs the full expand/read/collapse cycle for one group and
// returns its options as a canonical set.
func (c *Controller) ReadOptions(page dom.Page, group dom.Element) (*rubric.OptionSet, error) {
	set := &rubric.OptionSet{}
	err := c.WithExpanded(group, func() error {
		controls, err := c.OptionControls(page, group)
		if err != nil {
			return err
		}
		for _, oc := range controls {
			set.AppendKeyed(oc.Key, oc.Description, oc.Points)
			if oc.Applied {
				set.MarkSelected(oc.Key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// optionsContainer resolves the rendered options container:
// (a) an element linked to the group header via aria-describedby,
// (b) a sibling-scoped query through the group's parent,
// (c) a page-wide query.
func optionsContainer(page dom.Page, group dom.Element) (dom.Queryable, bool) {
	if headerID := headerID(group); headerID != "" {
		if el, ok := page.Query(fmt.Sprintf("[aria-describedby=%q]", headerID)); ok {
			return el, true
		}
	}
	if parent, ok := group.Parent(); ok {
		for _, sel := range containerSelectors {
			if el, ok := parent.Query(sel); ok {
				return el, true
			}
		}
	}
	for _, sel := range containerSelectors {
		if el, ok := page.Query(sel); ok {
			return el, true
		}
	}
	return nil, false
}

// headerID resolves the group header's element id for the accessibility link.
func headerID(group dom.Element) string {
	t := toggle(group)
	if id, ok := t.Attr("id"); ok && id != "" {
		return id
	}
	if id, ok := group.Attr("id"); ok {
		return id
	}
	return ""
}

// optionDescription extracts and cleans one option's description text.
// The bool reports whether any description field matched at all.
func optionDescription(option dom.Element) (string, bool) {
	txt, ok := dom.FirstText(option, descriptionSelectors...)
	if !ok {
		txt = option.Text()
		if txt == "" {
			return "", false
		}
	}
	return CleanDescription(txt), true
}

// CleanDescription strips the host page's fixed comment prefix.
func CleanDescription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(commentPrefix) && strings.EqualFold(s[:len(commentPrefix)], commentPrefix) {
		s = strings.TrimSpace(s[len(commentPrefix):])
	}
	return s
}

// optionPoints parses the option's point value from the first numeric
// substring after stripping thousands separators.
func optionPoints(option dom.Element) float64 {
	txt, ok := dom.FirstText(option, pointsSelectors...)
	if !ok {
		return 0
	}
	return ParsePoints(txt)
}

// ParsePoints extracts a point value from arbitrary label text.
func ParsePoints(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	m := numberPattern.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// KeyControl returns the element's activation control, falling back to the
// option element itself.
func KeyControl(option dom.Element) dom.Element {
	for _, sel := range keyControlSelectors {
		if el, ok := option.Query(sel); ok {
			return el
		}
	}
	return option
}

// IsApplied reports whether an item or option is currently applied. A native
// toggle's checked state wins when present; otherwise the key control's
// pressed/applied indicator is consulted.
func IsApplied(el dom.Element) bool {
	if input, ok := el.Query("input[type=checkbox], input[type=radio]"); ok {
		return input.Checked()
	}
	kc := KeyControl(el)
	if v, ok := kc.Attr("aria-pressed"); ok {
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if cls, ok := kc.Attr("class"); ok && strings.Contains(cls, "applied") {
		return true
	}
	if cls, ok := el.Attr("class"); ok && strings.Contains(cls, "applied") {
		return true
	}
	return false
}
