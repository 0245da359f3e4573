// Package apply turns grading decisions into page interactions: toggling
// checkbox items and selecting radio options through the accordion
// protocol. Application is idempotent; a control already in the decided
// state is left alone.
package apply

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rubricon/internal/accordion"
	"rubricon/internal/backend"
	"rubricon/internal/dom"
	"rubricon/internal/logging"
)

// ErrUnsupported marks operations the page offers no stable surface for.
var ErrUnsupported = errors.New("apply: unsupported operation")

// itemSelectors locate a rubric item element by its platform ID, most
// specific first.
var itemSelectors = []string{
	`.rubricItem[data-rubric-item-id=%q]`,
	`.rubricItemGroup[data-rubric-item-id=%q]`,
	`[data-rubric-item-id=%q]`,
	`[data-item-id=%q]`,
}

// Applier applies backend decisions to a live grading page.
type Applier struct {
	ctrl   *accordion.Controller
	settle time.Duration
	sleep  func(time.Duration)
}

// New returns an Applier. settle is the pause after each mutating click,
// giving the page time to persist the change before the next one.
func New(ctrl *accordion.Controller, settle time.Duration) *Applier {
	return &Applier{ctrl: ctrl, settle: settle, sleep: time.Sleep}
}

// WithSleep replaces the settle function, for tests.
func (a *Applier) WithSleep(fn func(time.Duration)) *Applier {
	a.sleep = fn
	return a
}

// Apply carries out one decision. An item that cannot be found on the
// page is logged and skipped rather than failing the run; the page may
// legitimately show a subset of the submitted rubric.
func (a *Applier) Apply(page dom.Page, decision backend.Decision) error {
	item, ok := a.locate(page, decision.RubricItemID)
	if !ok {
		logging.ApplyWarn("rubric item %s not found on page, skipping", decision.RubricItemID)
		return nil
	}

	switch decision.Type {
	case "RADIO":
		return a.applyRadio(page, item, decision)
	default:
		return a.applyCheckbox(item, decision)
	}
}

func (a *Applier) locate(page dom.Page, itemID string) (dom.Element, bool) {
	for _, pattern := range itemSelectors {
		if el, ok := page.Query(fmt.Sprintf(pattern, itemID)); ok {
			return el, true
		}
	}
	return nil, false
}

// applyCheckbox clicks the item's activation control only when the
// observed applied state differs from the decision. The observed state
// comes from a nested native toggle when one exists, else the key
// control's pressed/applied indicator, never from the item container.
func (a *Applier) applyCheckbox(item dom.Element, decision backend.Decision) error {
	want := decision.Verdict.Decision == backend.DecisionCheck
	if accordion.IsApplied(item) == want {
		logging.ApplyDebug("item %s already %s", decision.RubricItemID, decision.Verdict.Decision)
		return nil
	}
	if err := accordion.KeyControl(item).Click(); err != nil {
		return fmt.Errorf("toggling item %s: %w", decision.RubricItemID, err)
	}
	a.sleep(a.settle)
	logging.Apply("item %s set to %s", decision.RubricItemID, decision.Verdict.Decision)
	return nil
}

// applyRadio expands the item's option group, clicks the option whose
// description matches the verdict, and collapses the group again.
func (a *Applier) applyRadio(page dom.Page, item dom.Element, decision backend.Decision) error {
	want := strings.TrimSpace(decision.Verdict.SelectedOption)
	if want == "" {
		logging.ApplyWarn("radio decision for item %s has no selected option, skipping", decision.RubricItemID)
		return nil
	}

	return a.ctrl.WithExpanded(item, func() error {
		options, err := a.ctrl.OptionControls(page, item)
		if err != nil {
			return fmt.Errorf("reading options for item %s: %w", decision.RubricItemID, err)
		}
		for _, opt := range options {
			if opt.Description != want {
				continue
			}
			if opt.Applied {
				logging.ApplyDebug("item %s already on option %q", decision.RubricItemID, want)
				return nil
			}
			if err := opt.Control.Click(); err != nil {
				return fmt.Errorf("selecting option %q on item %s: %w", want, decision.RubricItemID, err)
			}
			a.sleep(a.settle)
			logging.Apply("item %s set to option %q", decision.RubricItemID, want)
			return nil
		}
		logging.ApplyWarn("option %q not found on item %s, leaving as-is", want, decision.RubricItemID)
		return nil
	})
}

// AttachComment would attach the verdict's comment to the item. The page
// exposes no stable comment affordance, so this is a documented gap.
func (a *Applier) AttachComment(dom.Page, backend.Decision) error {
	return ErrUnsupported
}
