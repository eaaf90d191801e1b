package compliance

import "strings"

// Summary holds aggregate requirement counts for one document.
type Summary struct {
	Total int `json:"total"`
	// BySeverity always has high, medium and low; unknown appears only
	// when some severity was missing or unrecognized. The buckets sum to
	// Total.
	BySeverity map[Severity]int `json:"by_severity"`
	// Incomplete counts requirements whose detail could not be fetched.
	Incomplete int `json:"incomplete"`
}

// NormalizeSeverity lower-cases s and maps anything other than high,
// medium or low to SeverityUnknown.
func NormalizeSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return sev
	}
	return SeverityUnknown
}

// Summarize rolls up requirement counts by severity.
func Summarize(doc *CompleteDocument) Summary {
	s := Summary{
		BySeverity: map[Severity]int{
			SeverityHigh:   0,
			SeverityMedium: 0,
			SeverityLow:    0,
		},
	}
	if doc == nil {
		return s
	}
	for _, r := range doc.Requirements {
		s.Total++
		s.BySeverity[NormalizeSeverity(r.Severity)]++
		if !r.Complete {
			s.Incomplete++
		}
	}
	return s
}

// FilterBySeverity returns the requirements with the given severity,
// ordered by id.
func FilterBySeverity(doc *CompleteDocument, sev Severity) []Requirement {
	if doc == nil {
		return nil
	}
	var out []Requirement
	for _, id := range doc.IDs() {
		r := doc.Requirements[id]
		if NormalizeSeverity(r.Severity) == sev {
			out = append(out, r)
		}
	}
	return out
}
