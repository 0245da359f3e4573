// Package rubric defines the canonical rubric model produced by extraction
// and consumed by submission and decision application.
package rubric

import (
	"fmt"
	"strings"
)

// KeyboardRow is the fixed 26-symbol option-label sequence used by the host
// platform. Option keys and sort tie-breaks follow this order, not the
// alphabet.
const KeyboardRow = "QWERTYUIOPASDFGHJKLZXCVBNM"

// KeyFor returns the option key for a zero-based position in the keyboard
// row, and false once the row is exhausted.
func KeyFor(i int) (string, bool) {
	if i < 0 || i >= len(KeyboardRow) {
		return "", false
	}
	return string(KeyboardRow[i]), true
}

// KeyIndex returns the keyboard-row position of a single-letter key, or -1.
func KeyIndex(key string) int {
	if len(key) != 1 {
		return -1
	}
	return strings.IndexByte(KeyboardRow, key[0])
}

// ItemType distinguishes the two structured item kinds.
type ItemType int

const (
	Checkbox ItemType = iota
	Radio
)

// String returns the wire spelling of the item type.
func (t ItemType) String() string {
	switch t {
	case Radio:
		return "RADIO"
	default:
		return "CHECKBOX"
	}
}

// ParseItemType maps a wire spelling back to an ItemType.
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CHECKBOX":
		return Checkbox, nil
	case "RADIO":
		return Radio, nil
	default:
		return Checkbox, fmt.Errorf("unknown item type %q", s)
	}
}

// Option is one choice of a radio group, keyed by its keyboard-row letter.
type Option struct {
	Key         string
	Description string
	Points      float64
	Selected    bool
}

// OptionSet is an ordered set of radio options. Keys are assigned in
// insertion order from the keyboard row and capped at 26.
type OptionSet struct {
	opts []Option
}

// Append adds an option with the next keyboard-row key. It returns the
// assigned key, or false when the row is exhausted.
func (s *OptionSet) Append(description string, points float64) (string, bool) {
	key, ok := KeyFor(len(s.opts))
	if !ok {
		return "", false
	}
	s.opts = append(s.opts, Option{Key: key, Description: description, Points: points})
	return key, true
}

// AppendKeyed adds an option under an explicit key, preserving call order.
func (s *OptionSet) AppendKeyed(key, description string, points float64) {
	s.opts = append(s.opts, Option{Key: key, Description: description, Points: points})
}

// Len returns the number of options.
func (s *OptionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.opts)
}

// All returns the options in order.
func (s *OptionSet) All() []Option {
	if s == nil {
		return nil
	}
	return s.opts
}

// ByKey returns the option with the given key.
func (s *OptionSet) ByKey(key string) (Option, bool) {
	for _, o := range s.All() {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

// MarkSelected records which option key is currently applied.
func (s *OptionSet) MarkSelected(key string) {
	for i := range s.opts {
		s.opts[i].Selected = s.opts[i].Key == key
	}
}

// SelectedKey returns the applied option key, if any.
func (s *OptionSet) SelectedKey() (string, bool) {
	for _, o := range s.All() {
		if o.Selected {
			return o.Key, true
		}
	}
	return "", false
}

// TextMap returns the letter-to-text map in insertion order.
func (s *OptionSet) TextMap() map[string]string {
	if s == nil || len(s.opts) == 0 {
		return nil
	}
	m := make(map[string]string, len(s.opts))
	for _, o := range s.opts {
		m[o.Key] = o.Description
	}
	return m
}

// Item is one atomic gradable criterion. Immutable once built.
type Item struct {
	ID          string
	Description string
	Points      float64
	Type        ItemType
	// Selected is the observed on-page state at extraction time; nil when
	// the state could not be determined.
	Selected *bool
	// Options is present for Radio items only.
	Options *OptionSet
}

// Style classifies the overall rubric shape.
type Style int

const (
	StyleCheckbox Style = iota
	StyleRadio
	StyleMixed
)

// String returns the wire spelling of the style.
func (s Style) String() string {
	switch s {
	case StyleRadio:
		return "RADIO"
	case StyleMixed:
		return "MIXED"
	default:
		return "CHECKBOX"
	}
}

// Model is the result of one extraction: exactly one variant is active.
type Model interface {
	isModel()
}

// Structured is an item-list rubric.
type Structured struct {
	Items []Item
	Style Style
}

// Manual is a single numeric score field with no discrete items.
type Manual struct {
	// ScoreFieldRef identifies the score input on the page.
	ScoreFieldRef string
}

// Absent means no rubric was detected.
type Absent struct{}

func (Structured) isModel() {}
func (Manual) isModel()     {}
func (Absent) isModel()     {}
