package apply

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubricon/internal/accordion"
	"rubricon/internal/backend"
	"rubricon/internal/dom"
)

// fakeEl is a scriptable dom.Element keyed by exact selector strings.
type fakeEl struct {
	attrs    map[string]string
	text     string
	queries  map[string][]*fakeEl
	parent   *fakeEl
	checked  bool
	clicks   int
	clickErr error
	onClick  func()
}

func newFakeEl() *fakeEl {
	return &fakeEl{attrs: map[string]string{}, queries: map[string][]*fakeEl{}}
}

func (f *fakeEl) Query(sel string) (dom.Element, bool) {
	if els := f.queries[sel]; len(els) > 0 {
		return els[0], true
	}
	return nil, false
}

func (f *fakeEl) QueryAll(sel string) []dom.Element {
	els := f.queries[sel]
	out := make([]dom.Element, 0, len(els))
	for _, e := range els {
		out = append(out, e)
	}
	return out
}

func (f *fakeEl) Tag() string { return "div" }

func (f *fakeEl) Attr(name string) (string, bool) {
	v, ok := f.attrs[name]
	return v, ok
}

func (f *fakeEl) Text() string { return f.text }

func (f *fakeEl) Matches(string) bool { return false }

func (f *fakeEl) Checked() bool { return f.checked }

func (f *fakeEl) Parent() (dom.Element, bool) {
	if f.parent == nil {
		return nil, false
	}
	return f.parent, true
}

func (f *fakeEl) Click() error {
	f.clicks++
	if f.clickErr != nil {
		return f.clickErr
	}
	if f.onClick != nil {
		f.onClick()
	}
	return nil
}

type fakePage struct {
	queries map[string][]*fakeEl
}

func (p *fakePage) Query(sel string) (dom.Element, bool) {
	if els := p.queries[sel]; len(els) > 0 {
		return els[0], true
	}
	return nil, false
}

func (p *fakePage) QueryAll(sel string) []dom.Element {
	els := p.queries[sel]
	out := make([]dom.Element, 0, len(els))
	for _, e := range els {
		out = append(out, e)
	}
	return out
}

func testApplier() (*Applier, *[]time.Duration) {
	var slept []time.Duration
	ctrl := accordion.New(350*time.Millisecond, 150*time.Millisecond).
		WithSleep(func(time.Duration) {})
	a := New(ctrl, 200*time.Millisecond).
		WithSleep(func(d time.Duration) { slept = append(slept, d) })
	return a, &slept
}

func checkboxDecision(id, verdict string) backend.Decision {
	return backend.Decision{
		RubricItemID: id,
		Type:         "CHECKBOX",
		Verdict:      backend.Verdict{Decision: verdict},
	}
}

// checkboxItem models a flat item div: applied state lives on a nested
// native input, clicks go through the key control button.
type checkboxItem struct {
	item  *fakeEl
	input *fakeEl
	kc    *fakeEl
}

func checkboxPage(id string, checked bool) (*fakePage, *checkboxItem) {
	item := newFakeEl()
	input := newFakeEl()
	input.checked = checked
	item.queries["input[type=checkbox], input[type=radio]"] = []*fakeEl{input}
	kc := newFakeEl()
	kc.onClick = func() { input.checked = !input.checked }
	item.queries[".rubricField-applied"] = []*fakeEl{kc}
	page := &fakePage{queries: map[string][]*fakeEl{
		`.rubricItem[data-rubric-item-id="` + id + `"]`: {item},
	}}
	return page, &checkboxItem{item: item, input: input, kc: kc}
}

func TestApplyCheckboxChecksUncheckedItem(t *testing.T) {
	page, cb := checkboxPage("3", false)
	a, slept := testApplier()

	require.NoError(t, a.Apply(page, checkboxDecision("3", backend.DecisionCheck)))
	assert.Equal(t, 1, cb.kc.clicks)
	assert.Zero(t, cb.item.clicks, "container is not the control")
	assert.True(t, cb.input.checked)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, *slept)
}

func TestApplyCheckboxUnchecksCheckedItem(t *testing.T) {
	page, cb := checkboxPage("3", true)
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, checkboxDecision("3", backend.DecisionUncheck)))
	assert.Equal(t, 1, cb.kc.clicks)
	assert.False(t, cb.input.checked)
}

func TestApplyCheckboxAlreadyAppliedIsNotToggledOff(t *testing.T) {
	page, cb := checkboxPage("3", true)
	a, slept := testApplier()

	require.NoError(t, a.Apply(page, checkboxDecision("3", backend.DecisionCheck)))
	assert.Zero(t, cb.kc.clicks)
	assert.Zero(t, cb.item.clicks)
	assert.True(t, cb.input.checked, "a check decision must never uncheck an applied item")
	assert.Empty(t, *slept)
}

func TestApplyCheckboxReadsPressedIndicatorWithoutNativeInput(t *testing.T) {
	// No nested input; applied state comes from the key control's
	// aria-pressed flag, like the scanner reads it.
	item := newFakeEl()
	kc := newFakeEl()
	kc.attrs["aria-pressed"] = "false"
	kc.onClick = func() {
		if kc.attrs["aria-pressed"] == "true" {
			kc.attrs["aria-pressed"] = "false"
		} else {
			kc.attrs["aria-pressed"] = "true"
		}
	}
	item.queries["[aria-pressed]"] = []*fakeEl{kc}
	page := &fakePage{queries: map[string][]*fakeEl{
		`.rubricItem[data-rubric-item-id="3"]`: {item},
	}}
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, checkboxDecision("3", backend.DecisionCheck)))
	assert.Equal(t, 1, kc.clicks)
	assert.Equal(t, "true", kc.attrs["aria-pressed"])

	require.NoError(t, a.Apply(page, checkboxDecision("3", backend.DecisionCheck)))
	assert.Equal(t, 1, kc.clicks, "already pressed, no second toggle")
}

func TestApplyIsIdempotent(t *testing.T) {
	page, cb := checkboxPage("3", false)
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, checkboxDecision("3", backend.DecisionCheck)))
	require.NoError(t, a.Apply(page, checkboxDecision("3", backend.DecisionCheck)))
	assert.Equal(t, 1, cb.kc.clicks)
}

func TestApplyUnknownItemIsSkipped(t *testing.T) {
	page := &fakePage{queries: map[string][]*fakeEl{}}
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, checkboxDecision("99", backend.DecisionCheck)))
}

// radioPage wires a group whose toggle flips aria-expanded on click and
// whose options container is linked via aria-describedby.
func radioPage(id string, options ...*fakeEl) (*fakePage, *fakeEl) {
	toggle := newFakeEl()
	toggle.attrs["aria-expanded"] = "false"
	toggle.attrs["id"] = "hdr-9"
	toggle.onClick = func() {
		if toggle.attrs["aria-expanded"] == "true" {
			toggle.attrs["aria-expanded"] = "false"
		} else {
			toggle.attrs["aria-expanded"] = "true"
		}
	}

	group := newFakeEl()
	group.queries["[aria-expanded]"] = []*fakeEl{toggle}

	container := newFakeEl()
	container.queries[".rubricItem"] = options

	page := &fakePage{queries: map[string][]*fakeEl{
		`.rubricItemGroup[data-rubric-item-id="` + id + `"]`: {group},
		`[aria-describedby="hdr-9"]`:                         {container},
	}}
	return page, toggle
}

func radioOption(desc string, applied bool) (*fakeEl, *fakeEl) {
	opt := newFakeEl()
	d := newFakeEl()
	d.text = desc
	opt.queries[".rubricField-description"] = []*fakeEl{d}
	kc := newFakeEl()
	if applied {
		kc.attrs["aria-pressed"] = "true"
	} else {
		kc.attrs["aria-pressed"] = "false"
	}
	opt.queries["[aria-pressed]"] = []*fakeEl{kc}
	return opt, kc
}

func radioDecision(id, selected string) backend.Decision {
	return backend.Decision{
		RubricItemID: id,
		Type:         "RADIO",
		Verdict:      backend.Verdict{SelectedOption: selected},
	}
}

func TestApplyRadioSelectsMatchingOption(t *testing.T) {
	full, fullKC := radioOption("Full credit", false)
	partial, partialKC := radioOption("Partial credit", false)
	page, toggle := radioPage("4", full, partial)
	a, slept := testApplier()

	require.NoError(t, a.Apply(page, radioDecision("4", "Partial credit")))

	assert.Equal(t, 2, toggle.clicks, "group is expanded and collapsed again")
	assert.Equal(t, 1, partialKC.clicks)
	assert.Zero(t, fullKC.clicks)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, *slept)
}

func TestApplyRadioMatchStripsCommentPrefix(t *testing.T) {
	opt, kc := radioOption("Grading Comment: Full credit", false)
	page, _ := radioPage("4", opt)
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, radioDecision("4", "Full credit")))
	assert.Equal(t, 1, kc.clicks)
}

func TestApplyRadioMatchIsExact(t *testing.T) {
	opt, kc := radioOption("full credit", false)
	page, toggle := radioPage("4", opt)
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, radioDecision("4", "Full credit")))
	assert.Zero(t, kc.clicks, "description must match the decision exactly")
	assert.Equal(t, 2, toggle.clicks)
}

func TestApplyRadioAlreadySelected(t *testing.T) {
	opt, kc := radioOption("Full credit", true)
	page, toggle := radioPage("4", opt)
	a, slept := testApplier()

	require.NoError(t, a.Apply(page, radioDecision("4", "Full credit")))
	assert.Zero(t, kc.clicks)
	assert.Equal(t, 2, toggle.clicks, "collapse still happens")
	assert.Empty(t, *slept)
}

func TestApplyRadioUnknownOptionLeavesGroupCollapsed(t *testing.T) {
	opt, kc := radioOption("Full credit", false)
	page, toggle := radioPage("4", opt)
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, radioDecision("4", "Half credit")))
	assert.Zero(t, kc.clicks)
	assert.Equal(t, 2, toggle.clicks)
}

func TestApplyRadioWithoutSelectedOptionSkips(t *testing.T) {
	opt, kc := radioOption("Full credit", false)
	page, toggle := radioPage("4", opt)
	a, _ := testApplier()

	require.NoError(t, a.Apply(page, radioDecision("4", "  ")))
	assert.Zero(t, kc.clicks)
	assert.Zero(t, toggle.clicks, "group is never expanded")
}

func TestAttachCommentUnsupported(t *testing.T) {
	page := &fakePage{queries: map[string][]*fakeEl{}}
	a, _ := testApplier()

	err := a.AttachComment(page, checkboxDecision("1", backend.DecisionCheck))
	assert.ErrorIs(t, err, ErrUnsupported)
}
