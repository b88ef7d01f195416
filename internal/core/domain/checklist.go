package domain

import (
	"fmt"
	"strings"
)

// ProcessType identifies a business process, e.g. "incorporation".
type ProcessType string

// String returns the string representation.
func (p ProcessType) String() string {
	return string(p)
}

// Category is a required document category within a checklist.
type Category string

// PredicateTarget selects what a classification predicate is applied to.
type PredicateTarget string

// Available predicate targets.
const (
	// TargetFilename matches against the upload's filename only.
	TargetFilename PredicateTarget = "filename"

	// TargetContent matches against the document text only.
	TargetContent PredicateTarget = "content"

	// TargetAny matches when either the filename or the content matches.
	TargetAny PredicateTarget = "any"
)

// IsValid returns true if the target is recognised.
func (t PredicateTarget) IsValid() bool {
	switch t {
	case TargetFilename, TargetContent, TargetAny:
		return true
	default:
		return false
	}
}

// Predicate is a keyword/pattern classification rule.
// A document matches when any keyword occurs (case-insensitively)
// or the pattern matches in the selected target.
type Predicate struct {
	Keywords []string
	Pattern  string
	Target   PredicateTarget
}

// IsEmpty reports whether the predicate has nothing to match on.
func (p Predicate) IsEmpty() bool {
	return len(p.Keywords) == 0 && p.Pattern == ""
}

// CategoryRule pairs a required category with its classification predicate.
type CategoryRule struct {
	Category  Category
	Predicate Predicate
}

// ChecklistDefinition is the ordered list of categories a process requires.
type ChecklistDefinition struct {
	Process ProcessType

	// Title is a human-readable process name, e.g. "Company Incorporation".
	Title string

	Categories []CategoryRule
}

// Validate checks structural constraints that do not require compiling patterns.
func (d ChecklistDefinition) Validate() error {
	if strings.TrimSpace(string(d.Process)) == "" {
		return fmt.Errorf("%w: checklist process id is empty", ErrInvalidChecklist)
	}
	if len(d.Categories) == 0 {
		return fmt.Errorf("%w: process %q has no categories", ErrInvalidChecklist, d.Process)
	}
	seen := make(map[Category]bool, len(d.Categories))
	for _, rule := range d.Categories {
		if strings.TrimSpace(string(rule.Category)) == "" {
			return fmt.Errorf("%w: process %q has an unnamed category", ErrInvalidChecklist, d.Process)
		}
		if seen[rule.Category] {
			return fmt.Errorf("%w: process %q repeats category %q", ErrInvalidChecklist, d.Process, rule.Category)
		}
		seen[rule.Category] = true
		if rule.Predicate.IsEmpty() {
			return fmt.Errorf("%w: category %q has no keywords or pattern", ErrInvalidChecklist, rule.Category)
		}
		if rule.Predicate.Target != "" && !rule.Predicate.Target.IsValid() {
			return fmt.Errorf("%w: category %q has unknown target %q",
				ErrInvalidChecklist, rule.Category, rule.Predicate.Target)
		}
	}
	return nil
}

// CategoryNames returns the categories in definition order.
func (d ChecklistDefinition) CategoryNames() []Category {
	out := make([]Category, len(d.Categories))
	for i, rule := range d.Categories {
		out[i] = rule.Category
	}
	return out
}

// ChecklistResult is the outcome of evaluating a batch against a definition.
type ChecklistResult struct {
	Process ProcessType

	// Satisfied is true iff every required category has exactly one document.
	Satisfied bool

	// Required is the number of categories in the definition.
	Required int

	// Missing lists categories with no matching document, in definition order.
	Missing []Category

	// Extra lists IDs of documents that matched no category, in upload order.
	Extra []string

	// Classified maps document ID to its category.
	Classified map[string]Category

	// Duplicates lists categories matched by more than one document.
	Duplicates map[Category][]string
}

// Present returns how many required categories have at least one document.
func (r *ChecklistResult) Present() int {
	return r.Required - len(r.Missing)
}

// Notification renders the checklist outcome as a sentence for the user.
func (r *ChecklistResult) Notification(title string) string {
	if title == "" {
		title = string(r.Process)
	}
	if r.Satisfied {
		return fmt.Sprintf("All %d required documents for %s are present.", r.Required, title)
	}
	msg := fmt.Sprintf("It appears that you're trying to complete %s. You have uploaded %d out of %d required documents.",
		title, r.Present(), r.Required)
	if len(r.Missing) > 0 {
		names := make([]string, len(r.Missing))
		for i, c := range r.Missing {
			names[i] = string(c)
		}
		msg += " Missing: " + strings.Join(names, ", ") + "."
	}
	if len(r.Duplicates) > 0 {
		msg += fmt.Sprintf(" %d categories have more than one document.", len(r.Duplicates))
	}
	return msg
}
