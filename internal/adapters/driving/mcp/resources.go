package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for docreview resources.
	uriScheme = "docreview://"

	jsonMIMEType = "application/json"

	historyLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "checklists",
		Name:        "checklists",
		Description: "Configured process checklists and their required categories",
		MIMEType:    jsonMIMEType,
	}, s.handleChecklistsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "checklists/{process}",
		Name:        "checklist",
		Description: "The checklist for one process type",
		MIMEType:    jsonMIMEType,
	}, s.handleChecklistResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "history",
		Name:        "history",
		Description: "Recent review runs, most recent first",
		MIMEType:    jsonMIMEType,
	}, s.handleHistoryResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "index",
		Name:        "index",
		Description: "Manifest of the live knowledge index",
		MIMEType:    jsonMIMEType,
	}, s.handleIndexResource)
}

type checklistInfo struct {
	Process    string         `json:"process"`
	Title      string         `json:"title"`
	Categories []categoryInfo `json:"categories"`
}

type categoryInfo struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Target   string   `json:"target,omitempty"`
}

func toChecklistInfo(def domain.ChecklistDefinition) checklistInfo {
	info := checklistInfo{
		Process:    string(def.Process),
		Title:      def.Title,
		Categories: make([]categoryInfo, len(def.Categories)),
	}
	for i, c := range def.Categories {
		info.Categories[i] = categoryInfo{
			Name:     string(c.Category),
			Keywords: c.Predicate.Keywords,
			Pattern:  c.Predicate.Pattern,
			Target:   string(c.Predicate.Target),
		}
	}
	return info
}

// handleChecklistsResource returns all configured checklists.
func (s *Server) handleChecklistsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Checklist == nil {
		return jsonResult(req.Params.URI, []checklistInfo{})
	}

	defs := s.ports.Checklist.Definitions()
	infos := make([]checklistInfo, len(defs))
	for i, def := range defs {
		infos[i] = toChecklistInfo(def)
	}
	return jsonResult(req.Params.URI, infos)
}

// handleChecklistResource returns the checklist for one process.
func (s *Server) handleChecklistResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Checklist == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract process from URI: docreview://checklists/{process}
	process := extractProcess(req.Params.URI)
	if process == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	def, err := s.ports.Checklist.Definition(domain.ProcessType(process))
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResult(req.Params.URI, toChecklistInfo(def))
}

// handleHistoryResource returns recent review runs without their reports.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runs, err := s.ports.Review.History(ctx, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("listing review runs: %w", err)
	}

	type runInfo struct {
		ID          string    `json:"id"`
		Process     string    `json:"process"`
		StartedAt   time.Time `json:"started_at"`
		Documents   int       `json:"documents"`
		Failed      int       `json:"failed"`
		Issues      int       `json:"issues"`
		OverallPass bool      `json:"overall_pass"`
		Cancelled   bool      `json:"cancelled"`
	}

	infos := make([]runInfo, len(runs))
	for i, r := range runs {
		infos[i] = runInfo{
			ID:          r.ID,
			Process:     string(r.ProcessType),
			StartedAt:   r.StartedAt,
			Documents:   r.DocumentCount,
			Failed:      r.FailedCount,
			Issues:      r.IssueCount,
			OverallPass: r.OverallPass,
			Cancelled:   r.Cancelled,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleIndexResource returns the live index manifest.
func (s *Server) handleIndexResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	index := s.ports.Index.Current()
	m := index.Manifest()
	return jsonResult(req.Params.URI, struct {
		SnapshotID     string    `json:"snapshot_id"`
		EmbeddingModel string    `json:"embedding_model"`
		Dimensions     int       `json:"dimensions"`
		Chunks         int       `json:"chunks"`
		Sources        int       `json:"sources"`
		BuiltAt        time.Time `json:"built_at"`
	}{
		SnapshotID:     m.SnapshotID,
		EmbeddingModel: m.EmbeddingModel,
		Dimensions:     m.Dimensions,
		Chunks:         index.Len(),
		Sources:        m.SourceCount,
		BuiltAt:        m.BuiltAt,
	})
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: jsonMIMEType,
			Text:     string(data),
		}},
	}, nil
}

// extractProcess extracts the process from a URI like docreview://checklists/{process}.
func extractProcess(uri string) string {
	const prefix = uriScheme + "checklists/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	process := strings.TrimPrefix(uri, prefix)
	if strings.Contains(process, "/") {
		return ""
	}
	return process
}
