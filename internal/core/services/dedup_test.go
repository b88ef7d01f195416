package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

func TestDedupIssues(t *testing.T) {
	tests := []struct {
		name   string
		issues []domain.Issue
		want   []string
	}{
		{
			name: "identical after normalization",
			issues: []domain.Issue{
				{ParagraphIndex: domain.IntPtr(0), Severity: domain.SeverityLow, Description: "Governing law is not ADGM."},
				{ParagraphIndex: domain.IntPtr(0), Severity: domain.SeverityLow, Description: "governing law is not ADGM"},
			},
			want: []string{"Governing law is not ADGM."},
		},
		{
			name: "different paragraphs kept",
			issues: []domain.Issue{
				{ParagraphIndex: domain.IntPtr(0), Severity: domain.SeverityLow, Description: "Missing date"},
				{ParagraphIndex: domain.IntPtr(1), Severity: domain.SeverityLow, Description: "Missing date"},
			},
			want: []string{"Missing date", "Missing date"},
		},
		{
			name: "document level and paragraph kept",
			issues: []domain.Issue{
				{Severity: domain.SeverityLow, Description: "Missing date"},
				{ParagraphIndex: domain.IntPtr(0), Severity: domain.SeverityLow, Description: "Missing date"},
			},
			want: []string{"Missing date", "Missing date"},
		},
		{
			name: "dissimilar descriptions kept",
			issues: []domain.Issue{
				{ParagraphIndex: domain.IntPtr(0), Severity: domain.SeverityLow, Description: "Missing signature"},
				{ParagraphIndex: domain.IntPtr(0), Severity: domain.SeverityLow, Description: "Wrong jurisdiction"},
			},
			want: []string{"Missing signature", "Wrong jurisdiction"},
		},
		{
			name: "higher severity survives",
			issues: []domain.Issue{
				{ParagraphIndex: domain.IntPtr(2), Severity: domain.SeverityLow, Description: "Court is wrong"},
				{ParagraphIndex: domain.IntPtr(2), Severity: domain.SeverityHigh, Description: "Court is wrong"},
			},
			want: []string{"Court is wrong"},
		},
		{
			name: "tie keeps first",
			issues: []domain.Issue{
				{Severity: domain.SeverityMedium, Description: "No registered office"},
				{Severity: domain.SeverityMedium, Description: "No registered office!"},
			},
			want: []string{"No registered office"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupIssues(tt.issues, DefaultDedupThreshold)
			descs := make([]string, len(got))
			for i, is := range got {
				descs[i] = is.Description
			}
			assert.Equal(t, tt.want, descs)
		})
	}
}

func TestDedupIssues_DefaultThreshold(t *testing.T) {
	issues := []domain.Issue{
		{Severity: domain.SeverityLow, Description: "same"},
		{Severity: domain.SeverityLow, Description: "same"},
	}
	require.Len(t, DedupIssues(issues, 0), 1)
}

func TestDice(t *testing.T) {
	assert.InDelta(t, 1.0, dice(bigrams("night"), bigrams("night")), 1e-9)
	assert.InDelta(t, 0.25, dice(bigrams("night"), bigrams("nacht")), 1e-9)
	assert.InDelta(t, 1.0, dice(bigrams(""), bigrams("")), 1e-9)
	assert.InDelta(t, 0.0, dice(bigrams("ab"), bigrams("cd")), 1e-9)
}

func TestDedupIssues_KeepsHigherSeverity(t *testing.T) {
	issues := []domain.Issue{
		{ParagraphIndex: domain.IntPtr(2), Severity: domain.SeverityLow, Description: "Court is wrong"},
		{ParagraphIndex: domain.IntPtr(2), Severity: domain.SeverityCritical, Description: "Court is wrong."},
		{ParagraphIndex: domain.IntPtr(2), Severity: domain.SeverityHigh, Description: "court is wrong"},
	}

	got := DedupIssues(issues, DefaultDedupThreshold)

	require.Len(t, got, 1)
	assert.Equal(t, domain.SeverityCritical, got[0].Severity)
	assert.Equal(t, "Court is wrong.", got[0].Description)
}
