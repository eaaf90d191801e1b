package status

import (
	"fmt"
	"strings"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
)

// severityLabel returns a colored label for a severity bucket.
func severityLabel(s compliance.Severity) string {
	switch s {
	case compliance.SeverityHigh:
		return highStyle.Render("HIGH")
	case compliance.SeverityMedium:
		return mediumStyle.Render("MEDIUM")
	case compliance.SeverityLow:
		return lowStyle.Render("LOW")
	default:
		return unknownStyle.Render("UNKNOWN")
	}
}

// renderSummary renders the severity roll-up box of a finished document.
func renderSummary(s compliance.Summary) string {
	var parts []string
	for _, sev := range []compliance.Severity{
		compliance.SeverityHigh,
		compliance.SeverityMedium,
		compliance.SeverityLow,
		compliance.SeverityUnknown,
	} {
		n, ok := s.BySeverity[sev]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d", severityLabel(sev), n))
	}
	line := fmt.Sprintf("%d requirements  ", s.Total) + strings.Join(parts, "  ")
	if s.Incomplete > 0 {
		line += "  " + failStyle.Render(fmt.Sprintf("%d incomplete", s.Incomplete))
	}
	return summaryBoxStyle.Render(line)
}

// renderResult renders the final state of the view.
func renderResult(doc *compliance.CompleteDocument, err error) string {
	var b strings.Builder
	if doc != nil {
		b.WriteString(renderSummary(compliance.Summarize(doc)))
		b.WriteString("\n")
		for _, id := range doc.Failed() {
			b.WriteString(failStyle.Render("  ✖ "+id) + dimStyle.Render("  "+doc.Requirements[id].FetchError))
			b.WriteString("\n")
		}
	}
	if err != nil {
		b.WriteString(failStyle.Render(fmt.Sprintf("  Error: %v", err)))
		b.WriteString("\n")
	}
	return b.String()
}
