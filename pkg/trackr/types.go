package trackr

import (
	"fmt"
	"sort"
	"strings"
)

// APIInfo is the service root document. Besides server_api_root it lists
// one entry per endpoint, which is kept raw.
type APIInfo map[string]any

// VersionRecord is one published version of a catalog entry.
type VersionRecord struct {
	Version  string `json:"version"`
	Release  string `json:"release"`
	Date     string `json:"date"`
	Released string `json:"released,omitempty"`
	Link     string `json:"link"`
}

// Key returns the document key this record points at.
func (v VersionRecord) Key(title string) DocumentKey {
	return NewDocumentKey(title, v.Version, v.Release)
}

// Catalog maps a document name to its published versions. Record order is
// whatever the service returned and carries no meaning.
type Catalog map[string][]VersionRecord

// Names returns the catalog entry names in ascending order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocumentKey identifies a single STIG/SRG release.
type DocumentKey struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
	Release string `json:"release" yaml:"release"`
}

// NewDocumentKey builds a key with the title in the service's name form,
// so "Windows 10" and "Windows_10" name the same document everywhere.
func NewDocumentKey(title, version, release string) DocumentKey {
	return DocumentKey{Title: normalizeTitle(title), Version: version, Release: release}
}

// String renders the key as "Title v3r3".
func (k DocumentKey) String() string {
	return fmt.Sprintf("%s v%sr%s", k.Title, k.Version, k.Release)
}

// Filename is the export file name for the key.
func (k DocumentKey) Filename() string {
	return fmt.Sprintf("%s_v%sr%s.json", normalizeTitle(k.Title), k.Version, k.Release)
}

// Validate checks version and release against their identifier formats.
func (k DocumentKey) Validate() error {
	if strings.TrimSpace(k.Title) == "" {
		return &ValidationError{Field: "title", Value: k.Title, Pattern: "non-empty"}
	}
	if err := ValidateVersion(k.Version); err != nil {
		return err
	}
	return ValidateRelease(k.Release)
}

// ParseDocumentKey parses "TITLE:VERSION:RELEASE".
func ParseDocumentKey(s string) (DocumentKey, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return DocumentKey{}, fmt.Errorf("invalid document key %q (expected TITLE:VERSION:RELEASE)", s)
	}
	j := strings.LastIndex(s[:i], ":")
	if j < 0 {
		return DocumentKey{}, fmt.Errorf("invalid document key %q (expected TITLE:VERSION:RELEASE)", s)
	}
	k := NewDocumentKey(s[:j], s[j+1:i], s[i+1:])
	if err := k.Validate(); err != nil {
		return DocumentKey{}, err
	}
	return k, nil
}

// DocumentSummary is a STIG/SRG document with lightweight requirement
// summaries keyed by vuln id.
type DocumentSummary struct {
	ID           string                        `json:"id"`
	Title        string                        `json:"title"`
	Version      string                        `json:"version,omitempty"`
	Release      string                        `json:"release,omitempty"`
	Status       string                        `json:"status"`
	Published    string                        `json:"published"`
	Description  string                        `json:"description,omitempty"`
	Notice       string                        `json:"notice,omitempty"`
	Filename     string                        `json:"filename,omitempty"`
	Requirements map[string]RequirementSummary `json:"requirements"`
}

// RequirementSummary is the per-requirement entry of a DocumentSummary.
type RequirementSummary struct {
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Rule     string `json:"rule"`
	Link     string `json:"link"`
}

// RequirementDetail is the full requirement record.
type RequirementDetail struct {
	ID                  string   `json:"id"`
	Title               string   `json:"requirement-title"`
	Severity            string   `json:"severity"`
	Rule                string   `json:"rule"`
	Group               string   `json:"group,omitempty"`
	Discussion          string   `json:"vuln-discussion,omitempty"`
	CheckText           string   `json:"check-text"`
	FixText             string   `json:"fix-text"`
	Identifiers         []string `json:"identifiers"`
	MitigationStatement *string  `json:"mitigation-statement"`
}

// CCIRefs returns the CCI ids referenced by the requirement, with the
// "CCIRef:" prefix stripped.
func (d RequirementDetail) CCIRefs() []string {
	var refs []string
	for _, id := range d.Identifiers {
		if rest, ok := strings.CutPrefix(id, "CCIRef:"); ok {
			refs = append(refs, rest)
		} else if strings.HasPrefix(id, "CCI-") {
			refs = append(refs, id)
		}
	}
	return refs
}

// AssessmentProcedure links a CCI to an RMF control at a given revision.
type AssessmentProcedure struct {
	CCI               string `json:"cci,omitempty"`
	ControlIdentifier string `json:"control_identifier"`
	NISTControlFamily string `json:"nist_control_family"`
	Text              string `json:"text,omitempty"`
}

// CCIDetail is a single Control Correlation Identifier.
type CCIDetail struct {
	ID                   string                `json:"cci,omitempty"`
	Definition           string                `json:"definition"`
	Type                 string                `json:"type,omitempty"`
	Status               string                `json:"status,omitempty"`
	AssessmentProcedures []AssessmentProcedure `json:"assessment_procedures"`
}

// RMFControlDetail is an NIST 800-53 control with its CCI mappings.
type RMFControlDetail struct {
	Number               string                `json:"number"`
	Title                string                `json:"title"`
	Family               string                `json:"family"`
	Baseline             []string              `json:"baseline"`
	Statements           string                `json:"statements"`
	AssessmentProcedures []AssessmentProcedure `json:"assessment_procedures"`
}
