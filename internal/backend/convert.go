package backend

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rubricon/internal/rubric"
)

const bonusMarker = "(bonus point)"

// Convert turns extracted rubric items into the backend's wire form.
// Structural noise is filtered out first, then the result is sorted into
// the platform's canonical display order so item numbering in grading
// output matches what the grader sees on screen. Convert is pure and
// idempotent; the input slice is not modified.
func Convert(items []rubric.Item) []WireItem {
	wire := make([]WireItem, 0, len(items))
	for _, it := range items {
		if skipItem(it) {
			continue
		}
		w := WireItem{
			ID:          it.ID,
			Description: it.Description,
			Points:      it.Points,
			Type:        it.Type.String(),
		}
		if it.Options != nil && it.Options.Len() > 0 {
			w.Options = it.Options.TextMap()
		}
		wire = append(wire, w)
	}
	Sort(wire)
	return wire
}

// skipItem drops zero-point checkboxes (structural headers on the
// platform) and explicit bonus items, which the service must not grade.
func skipItem(it rubric.Item) bool {
	if it.Type == rubric.Checkbox && it.Points == 0 {
		return true
	}
	return strings.Contains(strings.ToLower(it.Description), bonusMarker)
}

var letteredID = regexp.MustCompile(`^(\d+)-([A-Za-z])$`)

// sortKey decomposes a rubric item ID for ordering. The platform wraps
// item numbering at "0", which displays after "9", so a literal "0" ranks
// between 9 and 10. IDs of the form "<digits>-<letter>" group under their
// numeric prefix and order within the group by the keyboard-row position
// of the letter, matching the shortcut keys shown on screen.
type sortKey struct {
	lexical bool
	num     float64
	letter  int
	raw     string
}

func keyFor(id string) sortKey {
	if id == "0" {
		return sortKey{num: 9.5, letter: -1, raw: id}
	}
	if m := letteredID.FindStringSubmatch(id); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		idx := rubric.KeyIndex(strings.ToUpper(m[2]))
		if idx < 0 {
			idx = len(rubric.KeyboardRow)
		}
		return sortKey{num: n, letter: idx, raw: id}
	}
	if n, err := strconv.ParseFloat(id, 64); err == nil {
		return sortKey{num: n, letter: -1, raw: id}
	}
	return sortKey{lexical: true, raw: id}
}

func (a sortKey) less(b sortKey) bool {
	if a.lexical != b.lexical {
		return !a.lexical
	}
	if a.lexical {
		return a.raw < b.raw
	}
	if a.num != b.num {
		return a.num < b.num
	}
	if a.letter != b.letter {
		return a.letter < b.letter
	}
	return a.raw < b.raw
}

// Sort orders wire items in place into canonical display order. The
// ordering is total, so repeated calls are stable and idempotent.
func Sort(items []WireItem) {
	type keyed struct {
		key  sortKey
		item WireItem
	}
	pairs := make([]keyed, len(items))
	for i, it := range items {
		pairs[i] = keyed{key: keyFor(it.ID), item: it}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].key.less(pairs[j].key)
	})
	for i, p := range pairs {
		items[i] = p.item
	}
}
