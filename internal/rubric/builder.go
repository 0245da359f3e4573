package rubric

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"rubricon/internal/logging"
)

// embeddedItem is the defensive shape of one item in the embedded JSON blob.
// The host page has shipped at least two field spellings for id and
// description, so both are accepted.
type embeddedItem struct {
	ID           string            `json:"id"`
	RubricItemID string            `json:"rubric_item_id"`
	Description  string            `json:"description"`
	Text         string            `json:"text"`
	Points       json.Number       `json:"points"`
	ItemType     string            `json:"itemType"`
	Type         string            `json:"type"`
	Options      map[string]string `json:"options"`
}

type embeddedBlob struct {
	RubricItems []embeddedItem `json:"rubricItems"`
	RubricStyle string         `json:"rubricStyle"`
}

func (e embeddedItem) id() string {
	if e.ID != "" {
		return e.ID
	}
	return e.RubricItemID
}

func (e embeddedItem) description() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Text
}

func (e embeddedItem) itemType() string {
	if e.ItemType != "" {
		return e.ItemType
	}
	return e.Type
}

// BuildFromEmbedded decodes the embedded JSON blob into canonical items.
// Returns an error for malformed JSON or an empty item list; callers treat
// that as "fall through to DOM extraction".
func BuildFromEmbedded(raw []byte) ([]Item, Style, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var blob embeddedBlob
	if err := dec.Decode(&blob); err != nil {
		return nil, StyleCheckbox, fmt.Errorf("embedded rubric: %w", err)
	}
	if len(blob.RubricItems) == 0 {
		return nil, StyleCheckbox, fmt.Errorf("embedded rubric: no items")
	}

	items := make([]Item, 0, len(blob.RubricItems))
	for _, e := range blob.RubricItems {
		id := e.id()
		if id == "" {
			logging.ScannerWarn("embedded item without id skipped")
			continue
		}
		points, _ := e.Points.Float64()
		itemType := Checkbox
		if t, err := ParseItemType(e.itemType()); err == nil {
			itemType = t
		} else if len(e.Options) > 0 {
			itemType = Radio
		}

		item := Item{
			ID:          id,
			Description: strings.TrimSpace(e.description()),
			Points:      points,
			Type:        itemType,
		}
		if len(e.Options) > 0 {
			item.Options = orderedOptions(e.Options)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, StyleCheckbox, fmt.Errorf("embedded rubric: no usable items")
	}

	style := StyleCheckbox
	switch strings.ToUpper(blob.RubricStyle) {
	case "RADIO":
		style = StyleRadio
	case "MIXED":
		style = StyleMixed
	}
	return Dedupe(items), style, nil
}

// orderedOptions rebuilds an OptionSet from a letter-to-text map, ordered by
// keyboard-row position. Keys outside the row sort after it, alphabetically.
func orderedOptions(m map[string]string) *OptionSet {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ii, ij := KeyIndex(keys[i]), KeyIndex(keys[j])
		if ii >= 0 && ij >= 0 {
			return ii < ij
		}
		if ii >= 0 {
			return true
		}
		if ij >= 0 {
			return false
		}
		return keys[i] < keys[j]
	})

	set := &OptionSet{}
	for _, k := range keys {
		set.AppendKeyed(k, m[k], 0)
	}
	return set
}

// Dedupe enforces id uniqueness within one model, keeping the first
// occurrence of each id.
func Dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.ID] {
			logging.ScannerWarn("duplicate rubric item id %q dropped", item.ID)
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}

// DeriveStyle classifies the overall rubric shape from what extraction found.
// RADIO when only groups exist, CHECKBOX when only flat items, MIXED when both.
func DeriveStyle(flatCount, groupCount int) Style {
	switch {
	case groupCount > 0 && flatCount == 0:
		return StyleRadio
	case groupCount > 0 && flatCount > 0:
		return StyleMixed
	default:
		return StyleCheckbox
	}
}

// CompositeDescription renders a human-readable description of an item for
// diagnostic display: the base description plus, for radio items, the option
// list with credit labels and a selection marker. Never used on the wire.
func CompositeDescription(item Item) string {
	if item.Options.Len() == 0 {
		return item.Description
	}

	maxPoints := 0.0
	for _, o := range item.Options.All() {
		if o.Points > maxPoints {
			maxPoints = o.Points
		}
	}

	var sb strings.Builder
	sb.WriteString(item.Description)
	for _, o := range item.Options.All() {
		sb.WriteString("\n  ")
		sb.WriteString(o.Key)
		sb.WriteString(": ")
		sb.WriteString(o.Description)
		sb.WriteString(creditLabel(o.Points, maxPoints))
		sb.WriteString(" [")
		sb.WriteString(strconv.FormatFloat(o.Points, 'f', -1, 64))
		sb.WriteString(" pts]")
		if o.Selected {
			sb.WriteString(" *")
		}
	}
	return sb.String()
}

// creditLabel mirrors the host platform's Full/Partial/No credit annotations.
func creditLabel(points, maxPoints float64) string {
	switch {
	case maxPoints > 0 && points == maxPoints:
		return " (Full credit)"
	case points > 0 && points < maxPoints:
		return " (Partial credit)"
	case points == 0:
		return " (No credit)"
	default:
		return ""
	}
}
