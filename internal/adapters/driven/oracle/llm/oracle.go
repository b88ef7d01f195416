// Package llm provides the default FindingsOracle, backed by an LLMService.
//
// The oracle frames the document and its reference passages with the review
// prompts, asks the model for a JSON array of findings and parses the reply
// leniently. It never validates findings; callers treat its output as untrusted.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/logger"
)

// Ensure Oracle implements the interfaces.
var (
	_ driven.FindingsOracle   = (*Oracle)(nil)
	_ driven.PromptStoreAware = (*Oracle)(nil)
)

// Generation defaults.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.1
)

// Fallback prompts used when no PromptStore is configured.
const (
	fallbackSystemPrompt = `You are a legal compliance reviewer for %s. Report compliance problems in the document as a JSON array of objects with keys "paragraph", "section", "offending_text", "issue", "severity" (low, medium, high or critical), "suggestion" and "citation". Return [] when there are none. Only %s rules apply.`

	fallbackUserPrompt = "Process: %s\n\nDocument:\n%s\n\nReference passages:\n%s"
)

// noReferences stands in for an empty context.
const noReferences = "(no reference passages available)"

// Oracle proposes issues by prompting a language model.
type Oracle struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	maxTokens   int
	temperature float64
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithMaxTokens bounds the model's reply.
func WithMaxTokens(n int) Option {
	return func(o *Oracle) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Oracle) {
		o.temperature = t
	}
}

// New creates an oracle over the given LLM service.
func New(llm driven.LLMService, opts ...Option) *Oracle {
	o := &Oracle{
		llm:         llm,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (o *Oracle) SetPromptStore(store driven.PromptStore) {
	o.promptStore = store
}

// ProposeIssues asks the model for findings on one document.
func (o *Oracle) ProposeIssues(ctx context.Context, req driven.OracleRequest) ([]domain.IssueCandidate, error) {
	if o.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if req.Document == nil {
		return nil, fmt.Errorf("%w: oracle request has no document", domain.ErrInvalidInput)
	}

	messages := o.BuildMessages(req)

	reply, err := o.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("llm chat: %w", err)
	}

	candidates, err := ParseFindings(reply)
	if err != nil {
		logger.Debug("oracle reply for %s could not be parsed: %.200q", req.Document.Name, reply)
		return nil, err
	}
	for i := range candidates {
		candidates[i].DocumentRef = req.Document.ID
	}
	logger.Debug("oracle proposed %d candidate(s) for %s", len(candidates), req.Document.Name)
	return candidates, nil
}

// BuildMessages renders the system and user prompts for a request.
func (o *Oracle) BuildMessages(req driven.OracleRequest) []driven.ChatMessage {
	jurisdiction := req.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = "the applicable"
	}
	process := string(req.Process)
	if process == "" {
		process = "unspecified"
	}

	system := fmt.Sprintf(o.loadPrompt(driven.PromptReviewSystem, fallbackSystemPrompt), jurisdiction, jurisdiction)
	user := fmt.Sprintf(o.loadPrompt(driven.PromptReviewUser, fallbackUserPrompt),
		process, req.Document.NumberedText(), FormatReferences(req.Context))

	return []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: user},
	}
}

// FormatReferences renders retrieved chunks as "[source#ordinal] text" blocks.
func FormatReferences(chunks []domain.ScoredChunk) string {
	if len(chunks) == 0 {
		return noReferences
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s#%d] %s", c.SourceID, c.Ordinal, strings.TrimSpace(c.Text))
	}
	return b.String()
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (o *Oracle) loadPrompt(name, fallback string) string {
	if o.promptStore == nil {
		return fallback
	}
	prompt, err := o.promptStore.Load(name)
	if err != nil {
		logger.Warn("prompt %s unavailable, using built-in: %v", name, err)
		return fallback
	}
	return prompt
}
