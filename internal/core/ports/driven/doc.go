// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Segmenter: Splits an upload into addressable paragraphs
//   - SegmenterRegistry: Selects the segmenter for an upload
//   - CorpusSource: Lists and reads the reference corpus
//   - IndexStore: Persists the built knowledge index
//   - Renderer: Writes annotated copies in the upload's own format
//   - ConfigStore: Application configuration
//   - ChecklistSource: Checklist definitions
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Without it, reviews run with no retrieved context.
//   - FindingsOracle: Without it, only the checklist is evaluated.
//   - LLMService: Backs the default FindingsOracle.
//   - ReviewStore: Review run history.
//   - ReviewMetrics: Pipeline counters and histograms.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or segmenter package
package driven
