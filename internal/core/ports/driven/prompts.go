package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptReviewSystem is the system prompt for document review.
	// The template expects %s placeholders for the jurisdiction (twice).
	PromptReviewSystem = "review_system"

	// PromptReviewUser frames one document and its reference context.
	// The template expects %s placeholders for the process, the numbered
	// document text and the reference passages, in that order.
	PromptReviewUser = "review_user"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
