// Package driving defines what the CLI and the MCP server call into:
// review batches, checklist definitions, the knowledge index and settings.
//
// Implementations live in internal/core/services.
package driving
