// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the docreview home directory
// (~/.docreview, or $DOCREVIEW_HOME when set).
//
// Adapters:
//   - ConfigStore: TOML-based settings storage
//   - PromptStore: user-editable review prompts
//   - ChecklistLoader: process checklist definitions (TOML or YAML)
package file
