package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
	"github.com/custodia-labs/docreview/internal/logger"
)

// Ensure ChecklistService implements the interface.
var _ driving.ChecklistService = (*ChecklistService)(nil)

// ChecklistService classifies uploads against per-process checklists.
// Definitions are loaded and compiled once; the service is read-only after
// construction and safe for concurrent use.
type ChecklistService struct {
	definitions []domain.ChecklistDefinition
	compiled    map[domain.ProcessType][]compiledRule
}

// compiledRule is a category rule with its matchers prepared.
type compiledRule struct {
	category domain.Category
	target   domain.PredicateTarget
	keywords []*regexp.Regexp
	pattern  *regexp.Regexp
}

// NewChecklistService loads definitions from source and compiles them.
// Invalid definitions are a configuration error.
func NewChecklistService(source driven.ChecklistSource) (*ChecklistService, error) {
	defs, err := source.Load()
	if err != nil {
		return nil, fmt.Errorf("load checklists: %w", err)
	}
	return NewChecklistServiceFromDefinitions(defs)
}

// NewChecklistServiceFromDefinitions compiles the given definitions.
func NewChecklistServiceFromDefinitions(defs []domain.ChecklistDefinition) (*ChecklistService, error) {
	s := &ChecklistService{
		compiled: make(map[domain.ProcessType][]compiledRule, len(defs)),
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.compiled[def.Process]; dup {
			return nil, fmt.Errorf("%w: process %q defined twice", domain.ErrInvalidChecklist, def.Process)
		}
		rules, err := compileRules(def)
		if err != nil {
			return nil, err
		}
		s.compiled[def.Process] = rules
		s.definitions = append(s.definitions, def)
	}
	return s, nil
}

func compileRules(def domain.ChecklistDefinition) ([]compiledRule, error) {
	rules := make([]compiledRule, 0, len(def.Categories))
	for _, cat := range def.Categories {
		rule := compiledRule{
			category: cat.Category,
			target:   cat.Predicate.Target,
		}
		if rule.target == "" {
			rule.target = domain.TargetAny
		}
		for _, kw := range cat.Predicate.Keywords {
			kw = normalizeForMatch(kw)
			if kw == "" {
				continue
			}
			// Whole-word match so short keywords like "aoa" do not hit inside words.
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("%w: category %q keyword %q: %v", domain.ErrInvalidChecklist, cat.Category, kw, err)
			}
			rule.keywords = append(rule.keywords, re)
		}
		if cat.Predicate.Pattern != "" {
			re, err := regexp.Compile(cat.Predicate.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: category %q pattern: %v", domain.ErrInvalidChecklist, cat.Category, err)
			}
			rule.pattern = re
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Definitions returns all configured checklists in configuration order.
func (s *ChecklistService) Definitions() []domain.ChecklistDefinition {
	out := make([]domain.ChecklistDefinition, len(s.definitions))
	copy(out, s.definitions)
	return out
}

// Definition returns the checklist for a process.
func (s *ChecklistService) Definition(process domain.ProcessType) (domain.ChecklistDefinition, error) {
	for _, def := range s.definitions {
		if def.Process == process {
			return def, nil
		}
	}
	return domain.ChecklistDefinition{}, fmt.Errorf("%w: %q", domain.ErrUnknownProcessType, process)
}

// Evaluate classifies each document into at most one category. A document
// matching several categories aborts evaluation; unmatched documents are
// listed as extra. The checklist is satisfied when every category has
// exactly one document.
func (s *ChecklistService) Evaluate(process domain.ProcessType, docs []*domain.Document) (*domain.ChecklistResult, error) {
	rules, ok := s.compiled[process]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProcessType, process)
	}

	result := &domain.ChecklistResult{
		Process:    process,
		Required:   len(rules),
		Extra:      []string{},
		Classified: make(map[string]domain.Category),
		Duplicates: make(map[domain.Category][]string),
	}

	byCategory := make(map[domain.Category][]string, len(rules))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		matched := classify(rules, doc)
		switch len(matched) {
		case 0:
			result.Extra = append(result.Extra, doc.ID)
			logger.Debug("checklist: %s matched no category", doc.Name)
		case 1:
			result.Classified[doc.ID] = matched[0]
			byCategory[matched[0]] = append(byCategory[matched[0]], doc.ID)
			logger.Debug("checklist: %s classified as %s", doc.Name, matched[0])
		default:
			return nil, &domain.AmbiguousClassificationError{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				Categories:   matched,
			}
		}
	}

	for _, rule := range rules {
		ids := byCategory[rule.category]
		switch {
		case len(ids) == 0:
			result.Missing = append(result.Missing, rule.category)
		case len(ids) > 1:
			result.Duplicates[rule.category] = ids
		}
	}
	result.Satisfied = len(result.Missing) == 0 && len(result.Duplicates) == 0

	return result, nil
}

// classify returns the categories whose predicate matches doc, in rule order.
func classify(rules []compiledRule, doc *domain.Document) []domain.Category {
	name := normalizeFilename(doc.Name)
	var content string
	contentLoaded := false

	var matched []domain.Category
	for _, rule := range rules {
		hit := false
		if rule.target == domain.TargetFilename || rule.target == domain.TargetAny {
			hit = rule.matches(name, doc.Name)
		}
		if !hit && (rule.target == domain.TargetContent || rule.target == domain.TargetAny) {
			if !contentLoaded {
				content = doc.Text()
				contentLoaded = true
			}
			hit = rule.matches(normalizeForMatch(content), content)
		}
		if hit {
			matched = append(matched, rule.category)
		}
	}
	return matched
}

// matches tests keywords against normalized text and the pattern against the original.
func (r compiledRule) matches(normalized, original string) bool {
	for _, kw := range r.keywords {
		if kw.MatchString(normalized) {
			return true
		}
	}
	return r.pattern != nil && r.pattern.MatchString(original)
}

// normalizeFilename drops the extension and treats separators as spaces,
// so "Articles_of-Association.docx" reads "articles of association".
func normalizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return normalizeForMatch(base)
}

// normalizeForMatch lowercases and collapses separators and whitespace.
func normalizeForMatch(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == '.' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
