// Package compliance assembles complete STIG/SRG documents from the
// catalog service and derives views over them: the latest published
// version of an entry and severity roll-ups.
package compliance

import (
	"sort"
	"time"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// Severity is a normalized requirement severity.
type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityLow     Severity = "low"
	SeverityUnknown Severity = "unknown"
)

// Requirement is one entry of a CompleteDocument. When the detail fetch
// succeeded it carries the full detail and Complete is true. Otherwise it
// keeps the summary fields and FetchError holds the reason.
type Requirement struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Severity            string   `json:"severity"`
	Rule                string   `json:"rule"`
	Link                string   `json:"link,omitempty"`
	Group               string   `json:"group,omitempty"`
	Discussion          string   `json:"discussion,omitempty"`
	CheckText           string   `json:"check_text,omitempty"`
	FixText             string   `json:"fix_text,omitempty"`
	Identifiers         []string `json:"identifiers,omitempty"`
	MitigationStatement *string  `json:"mitigation_statement,omitempty"`

	Complete   bool   `json:"complete"`
	FetchError string `json:"fetch_error,omitempty"`
}

// CCIRefs returns the CCI ids the requirement references.
func (r Requirement) CCIRefs() []string {
	return trackr.RequirementDetail{Identifiers: r.Identifiers}.CCIRefs()
}

// CompleteDocument is a document whose requirement summaries have been
// replaced by full details wherever they could be fetched. Every
// requirement id of the summary is present.
type CompleteDocument struct {
	Key          trackr.DocumentKey     `json:"key"`
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Status       string                 `json:"status"`
	Published    string                 `json:"published"`
	Description  string                 `json:"description,omitempty"`
	FetchedAt    time.Time              `json:"fetched_at"`
	Requirements map[string]Requirement `json:"requirements"`
}

// IDs returns the requirement ids in ascending order.
func (d *CompleteDocument) IDs() []string {
	return sortedIDs(d.Requirements)
}

// Failed returns the ids whose detail could not be fetched, ascending.
func (d *CompleteDocument) Failed() []string {
	var ids []string
	for id, r := range d.Requirements {
		if !r.Complete {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func newDocument(key trackr.DocumentKey, s *trackr.DocumentSummary) *CompleteDocument {
	doc := &CompleteDocument{
		Key:          key,
		ID:           s.ID,
		Title:        s.Title,
		Status:       s.Status,
		Published:    s.Published,
		Description:  s.Description,
		FetchedAt:    time.Now().UTC(),
		Requirements: make(map[string]Requirement, len(s.Requirements)),
	}
	for id, rs := range s.Requirements {
		doc.Requirements[id] = fromSummary(id, rs)
	}
	return doc
}

func fromSummary(id string, s trackr.RequirementSummary) Requirement {
	return Requirement{
		ID:       id,
		Title:    s.Title,
		Severity: s.Severity,
		Rule:     s.Rule,
		Link:     s.Link,
	}
}

// merge lays the detail over the summary entry. Non-empty detail fields
// win; the summary link is kept since details carry none.
func merge(base Requirement, d *trackr.RequirementDetail) Requirement {
	r := base
	if d.Title != "" {
		r.Title = d.Title
	}
	if d.Severity != "" {
		r.Severity = d.Severity
	}
	if d.Rule != "" {
		r.Rule = d.Rule
	}
	r.Group = d.Group
	r.Discussion = d.Discussion
	r.CheckText = d.CheckText
	r.FixText = d.FixText
	r.Identifiers = d.Identifiers
	r.MitigationStatement = d.MitigationStatement
	r.Complete = true
	r.FetchError = ""
	return r
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
