package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

// defaultQueryLimit is used when query_corpus is called without k.
const defaultQueryLimit = 5

// DocumentInput is one uploaded document. Exactly one of Text and
// ContentBase64 is expected; DOCX files must use ContentBase64.
type DocumentInput struct {
	Name          string `json:"name" jsonschema:"the original filename, e.g. articles.docx"`
	MIMEType      string `json:"mime_type,omitempty" jsonschema:"the MIME type; inferred from the filename when empty"`
	Text          string `json:"text,omitempty" jsonschema:"plain text or Markdown content"`
	ContentBase64 string `json:"content_base64,omitempty" jsonschema:"base64-encoded file content"`
}

// ReviewInput is the input schema for the review_documents tool.
type ReviewInput struct {
	Process          string          `json:"process,omitempty" jsonschema:"the process type, e.g. incorporation (default from settings)"`
	Documents        []DocumentInput `json:"documents" jsonschema:"the documents of the batch in upload order"`
	IncludeAnnotated bool            `json:"include_annotated,omitempty" jsonschema:"return annotated copies as base64"`
}

// ReviewOutput is the output schema for the review_documents tool.
type ReviewOutput struct {
	RunID        string           `json:"run_id"`
	ProcessType  string           `json:"process_type"`
	Notification string           `json:"notification"`
	Satisfied    bool             `json:"satisfied"`
	Missing      []string         `json:"missing"`
	Extra        []string         `json:"extra"`
	OverallPass  bool             `json:"overall_pass"`
	BySeverity   SeverityOutput   `json:"by_severity"`
	Documents    []DocumentOutput `json:"documents"`
	Warnings     []string         `json:"warnings,omitempty"`
	Files        []FileOutput     `json:"files,omitempty"`
}

// SeverityOutput counts issues per severity.
type SeverityOutput struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// DocumentOutput is one document's review outcome.
type DocumentOutput struct {
	DocumentID string        `json:"document_id"`
	Name       string        `json:"name"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Notes      []string      `json:"notes,omitempty"`
	Issues     []IssueOutput `json:"issues"`
}

// IssueOutput is one reported issue.
type IssueOutput struct {
	ParagraphIndex *int    `json:"paragraph_index"`
	Severity       string  `json:"severity"`
	Description    string  `json:"description"`
	Suggestion     *string `json:"suggestion"`
}

// FileOutput is an annotated copy.
type FileOutput struct {
	Name          string `json:"name"`
	ContentBase64 string `json:"content_base64"`
}

// ChecklistInput is the input schema for the evaluate_checklist tool.
type ChecklistInput struct {
	Process   string          `json:"process,omitempty" jsonschema:"the process type (default from settings)"`
	Documents []DocumentInput `json:"documents" jsonschema:"the documents to classify"`
}

// ChecklistOutput is the output schema for the evaluate_checklist tool.
type ChecklistOutput struct {
	Process      string   `json:"process"`
	Satisfied    bool     `json:"satisfied"`
	Required     int      `json:"required"`
	Present      int      `json:"present"`
	Missing      []string `json:"missing"`
	Extra        []string `json:"extra"`
	Notification string   `json:"notification"`
}

// QueryInput is the input schema for the query_corpus tool.
type QueryInput struct {
	Query string `json:"query" jsonschema:"text to find related regulatory passages for"`
	K     int    `json:"k,omitempty" jsonschema:"number of passages to return (default 5)"`
}

// QueryOutput is the output schema for the query_corpus tool.
type QueryOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ChunkOutput is one retrieved corpus passage.
type ChunkOutput struct {
	SourceID string  `json:"source_id"`
	Ordinal  int     `json:"ordinal"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_documents",
		Description: "Review a batch of corporate documents for compliance issues and checklist completeness",
	}, s.handleReview)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "evaluate_checklist",
		Description: "Classify documents against the process checklist without reviewing them",
	}, s.handleChecklist)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_corpus",
		Description: "Find regulatory passages related to a piece of text",
	}, s.handleQuery)
}

// handleReview handles the review_documents tool invocation. A cancelled
// batch still returns its partial result.
func (s *Server) handleReview(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReviewInput,
) (*mcp.CallToolResult, ReviewOutput, error) {
	docs, err := rawDocuments(input.Documents)
	if err != nil {
		return nil, ReviewOutput{}, err
	}

	req := driving.ReviewRequest{Process: domain.ProcessType(input.Process), Documents: docs}
	result, err := s.ports.Review.Review(ctx, req)
	if result == nil {
		return nil, ReviewOutput{}, err
	}
	if err != nil && !errors.Is(err, domain.ErrBatchCancelled) {
		return nil, ReviewOutput{}, err
	}

	output := reviewOutput(result)
	if err != nil {
		output.Warnings = append(output.Warnings, err.Error())
	}

	if input.IncludeAnnotated {
		files, renderErr := s.ports.Review.Render(ctx, result)
		if renderErr != nil {
			return nil, ReviewOutput{}, fmt.Errorf("rendering annotated copies: %w", renderErr)
		}
		for _, f := range files {
			output.Files = append(output.Files, FileOutput{
				Name:          f.Name,
				ContentBase64: base64.StdEncoding.EncodeToString(f.Content),
			})
		}
	}

	return nil, output, nil
}

// handleChecklist handles the evaluate_checklist tool invocation.
func (s *Server) handleChecklist(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChecklistInput,
) (*mcp.CallToolResult, ChecklistOutput, error) {
	docs, err := rawDocuments(input.Documents)
	if err != nil {
		return nil, ChecklistOutput{}, err
	}

	result, err := s.ports.Review.Check(ctx, driving.ReviewRequest{
		Process:   domain.ProcessType(input.Process),
		Documents: docs,
	})
	if err != nil {
		return nil, ChecklistOutput{}, err
	}

	title := ""
	if s.ports.Checklist != nil {
		if def, defErr := s.ports.Checklist.Definition(result.Process); defErr == nil {
			title = def.Title
		}
	}

	return nil, ChecklistOutput{
		Process:      string(result.Process),
		Satisfied:    result.Satisfied,
		Required:     result.Required,
		Present:      result.Present(),
		Missing:      categoryNames(result.Missing),
		Extra:        nonNil(result.Extra),
		Notification: result.Notification(title),
	}, nil
}

// handleQuery handles the query_corpus tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	if s.ports.Index == nil {
		return nil, QueryOutput{}, ErrIndexUnavailable
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, QueryOutput{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	k := input.K
	if k <= 0 {
		k = defaultQueryLimit
	}

	results, err := s.ports.Index.Query(ctx, input.Query, k)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Results: make([]ChunkOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = ChunkOutput{
			SourceID: r.SourceID,
			Ordinal:  r.Ordinal,
			Score:    r.Score,
			Text:     r.Text,
		}
	}

	return nil, output, nil
}

// rawDocuments decodes tool inputs into uploads.
func rawDocuments(inputs []DocumentInput) ([]domain.RawDocument, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no documents", domain.ErrInvalidInput)
	}
	docs := make([]domain.RawDocument, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Name) == "" {
			return nil, fmt.Errorf("%w: document %d has no name", domain.ErrInvalidInput, i)
		}
		var content []byte
		switch {
		case in.ContentBase64 != "":
			decoded, err := base64.StdEncoding.DecodeString(in.ContentBase64)
			if err != nil {
				return nil, fmt.Errorf("%w: document %s: %w", domain.ErrInvalidInput, in.Name, err)
			}
			content = decoded
		case in.Text != "":
			content = []byte(in.Text)
		default:
			return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, in.Name)
		}
		docs[i] = domain.RawDocument{Name: in.Name, MIMEType: in.MIMEType, Content: content}
	}
	return docs, nil
}

func reviewOutput(result *driving.ReviewResult) ReviewOutput {
	report := result.Report
	output := ReviewOutput{
		RunID:       result.RunID,
		ProcessType: report.ProcessType,
		Satisfied:   report.Checklist.Satisfied,
		Missing:     nonNil(report.Checklist.Missing),
		Extra:       nonNil(report.Checklist.Extra),
		OverallPass: report.Summary.OverallPass,
		BySeverity: SeverityOutput{
			Low:      report.Summary.BySeverity.Low,
			Medium:   report.Summary.BySeverity.Medium,
			High:     report.Summary.BySeverity.High,
			Critical: report.Summary.BySeverity.Critical,
		},
		Documents: make([]DocumentOutput, len(report.Documents)),
		Warnings:  result.Warnings,
	}
	if result.Checklist != nil {
		output.Notification = result.Checklist.Notification(result.Definition.Title)
	}

	for i, d := range report.Documents {
		doc := DocumentOutput{
			DocumentID: d.DocumentID,
			Name:       d.Name,
			Status:     string(d.Status),
			Error:      d.Error,
			Issues:     make([]IssueOutput, len(d.Issues)),
		}
		if i < len(result.Documents) {
			doc.Notes = result.Documents[i].Review.Notes
		}
		for j, issue := range d.Issues {
			doc.Issues[j] = IssueOutput{
				ParagraphIndex: issue.ParagraphIndex,
				Severity:       issue.Severity,
				Description:    issue.Description,
				Suggestion:     issue.Suggestion,
			}
		}
		output.Documents[i] = doc
	}
	return output
}

func categoryNames(categories []domain.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
