package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptReviewSystem: `You are a legal compliance reviewer specialising in %s regulations.
You review business documents against the reference passages supplied with each request and report concrete compliance problems: legal red flags, missing or defective clauses, wrong jurisdiction or governing law, and formatting that would cause a filing to be rejected.

Rules:
1. Ground every finding in the reference passages. If no passage supports a finding, leave "citation" empty.
2. Quote "offending_text" exactly as it appears in the document, copied from a single paragraph.
3. Set "paragraph" to the bracketed number of the paragraph the text comes from, or null for a problem with the document as a whole (for example a missing clause).
4. Use severity "low", "medium", "high" or "critical". Use "critical" only when the document cannot be filed with %s as written.
5. Return ONLY a JSON array of findings. Return [] when there are no problems. Do not add any text outside the JSON.

Each finding has this shape:
{
  "paragraph": 3,
  "section": "Clause 3.1",
  "offending_text": "The exact text from the document that contains the issue.",
  "issue": "A clear, one-sentence description of the issue found.",
  "severity": "high",
  "suggestion": "A compliant rewording or an action to take.",
  "citation": "The specific rule that applies, taken from the reference passages."
}`,

	driven.PromptReviewUser: `Process: %s

Document (paragraphs are numbered in brackets):
---
%s
---

Reference passages:
---
%s
---

Provide your findings as a single JSON array.`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to <HomeDir>/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := HomeDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(home, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# docreview Prompts

This directory contains the prompts used to ask the language model for
compliance findings.

## Files

- ` + "`review_system.txt`" + ` - Reviewer role, rules and the JSON finding shape
- ` + "`review_user.txt`" + ` - Frames one document and its reference passages

## Customisation

Edit any file to customise the review. Changes take effect on the next run.
Keep the JSON field names unchanged: findings that do not parse are discarded.

## Format Placeholders

- ` + "`review_system.txt`" + ` - ` + "`%s`" + ` twice: the jurisdiction
- ` + "`review_user.txt`" + ` - ` + "`%s`" + ` three times: process, document, reference passages

Ensure customised prompts keep the placeholders in the same order.
`
	return os.WriteFile(path, []byte(content), 0600)
}
