package file

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure ChecklistLoader implements the interface.
var _ driven.ChecklistSource = (*ChecklistLoader)(nil)

// ChecklistLoader reads process checklists from a TOML or YAML file and
// merges them over the built-in definitions. A file definition replaces a
// built-in one with the same process id.
type ChecklistLoader struct {
	path string
}

// NewChecklistLoader creates a loader. An empty path yields the built-in
// definitions only.
func NewChecklistLoader(path string) *ChecklistLoader {
	return &ChecklistLoader{path: path}
}

// Path returns the checklist file path, which may be empty.
func (l *ChecklistLoader) Path() string {
	return l.path
}

type checklistFile struct {
	Process []processEntry `toml:"process" yaml:"process"`
}

type processEntry struct {
	ID       string          `toml:"id" yaml:"id"`
	Title    string          `toml:"title" yaml:"title"`
	Category []categoryEntry `toml:"category" yaml:"category"`
}

type categoryEntry struct {
	Name     string   `toml:"name" yaml:"name"`
	Keywords []string `toml:"keywords" yaml:"keywords"`
	Pattern  string   `toml:"pattern" yaml:"pattern"`
	Target   string   `toml:"target" yaml:"target"`
}

// Load returns the merged definitions, built-ins first in their original
// order followed by new processes from the file.
func (l *ChecklistLoader) Load() ([]domain.ChecklistDefinition, error) {
	defs := BuiltinChecklists()
	if l.path == "" {
		return defs, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrInvalidChecklist, l.path, err)
	}
	parsed, err := parseChecklistFile(l.path, data)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.ProcessType]bool, len(parsed))
	for _, def := range parsed {
		if seen[def.Process] {
			return nil, fmt.Errorf("%w: process %q defined twice in %s", domain.ErrInvalidChecklist, def.Process, l.path)
		}
		seen[def.Process] = true

		replaced := false
		for i := range defs {
			if defs[i].Process == def.Process {
				defs[i] = def
				replaced = true
				break
			}
		}
		if !replaced {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func parseChecklistFile(path string, data []byte) ([]domain.ChecklistDefinition, error) {
	var f checklistFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidChecklist, path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidChecklist, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s: checklist files must be .toml, .yaml or .yml", domain.ErrInvalidChecklist, path)
	}

	if len(f.Process) == 0 {
		return nil, fmt.Errorf("%w: %s defines no processes", domain.ErrInvalidChecklist, path)
	}

	defs := make([]domain.ChecklistDefinition, 0, len(f.Process))
	for _, p := range f.Process {
		def := domain.ChecklistDefinition{
			Process: domain.ProcessType(strings.TrimSpace(p.ID)),
			Title:   strings.TrimSpace(p.Title),
		}
		for _, c := range p.Category {
			def.Categories = append(def.Categories, domain.CategoryRule{
				Category: domain.Category(strings.TrimSpace(c.Name)),
				Predicate: domain.Predicate{
					Keywords: c.Keywords,
					Pattern:  c.Pattern,
					Target:   domain.PredicateTarget(strings.ToLower(strings.TrimSpace(c.Target))),
				},
			})
		}
		if err := ValidateChecklist(def); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ValidateChecklist checks a definition's structure and compiles its patterns.
func ValidateChecklist(def domain.ChecklistDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	for _, rule := range def.Categories {
		if rule.Predicate.Pattern == "" {
			continue
		}
		if _, err := regexp.Compile(rule.Predicate.Pattern); err != nil {
			return fmt.Errorf("%w: category %q: %w", domain.ErrInvalidChecklist, rule.Category, err)
		}
	}
	return nil
}

// BuiltinChecklists returns the definitions shipped with docreview.
// Company incorporation requires the five documents the ADGM registration
// authority asks for, recognised by filename.
func BuiltinChecklists() []domain.ChecklistDefinition {
	filename := func(name string, keywords ...string) domain.CategoryRule {
		return domain.CategoryRule{
			Category:  domain.Category(name),
			Predicate: domain.Predicate{Keywords: keywords, Target: domain.TargetFilename},
		}
	}
	return []domain.ChecklistDefinition{
		{
			Process: "incorporation",
			Title:   "Company Incorporation",
			Categories: []domain.CategoryRule{
				filename("Articles of Association", "articles of association", "aoa"),
				filename("Memorandum of Association", "memorandum of association", "moa"),
				filename("Incorporation Application Form", "incorporation application", "application form"),
				filename("UBO Declaration Form", "ubo declaration", "ubo"),
				filename("Register of Members and Directors", "register of members", "register of directors"),
			},
		},
	}
}
