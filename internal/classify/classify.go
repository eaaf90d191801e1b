// Package classify separates technology-generic guides (SRGs) from
// vendor-specific implementation guides (STIGs). Classification is a
// best-effort heuristic over free-text names and requirement text; the
// service carries no field for it, so unrecognized naming yields
// VendorSpecific.
package classify

import (
	"regexp"
	"strings"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// Kind is the classification result.
type Kind int

const (
	VendorSpecific Kind = iota
	Generic
)

// String returns "SRG" for Generic and "STIG" for VendorSpecific.
func (k Kind) String() string {
	if k == Generic {
		return "SRG"
	}
	return "STIG"
}

// ParseKind maps "srg"/"generic" and "stig"/"vendor" (any case) to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "srg", "generic":
		return Generic, true
	case "stig", "vendor":
		return VendorSpecific, true
	}
	return VendorSpecific, false
}

// Names are matched after lowercasing and mapping spaces to underscores.
var catalogPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(^|[_\-(])security[_\-]requirements?[_\-]guide($|[_\-)])`),
	regexp.MustCompile(`\(srg\)`),
	regexp.MustCompile(`_srg$`),
}

// Generic guides whose catalog names omit the "Security Requirements Guide"
// suffix. Every other generic guide is caught by catalogPatterns.
var genericPrefixes = []string{
	"application_layer_gateway",
	"central_log_server",
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ClassifyCatalogEntry classifies a catalog entry name.
func ClassifyCatalogEntry(name string) Kind {
	n := normalizeName(name)
	for _, re := range catalogPatterns {
		if re.MatchString(n) {
			return Generic
		}
	}
	for _, prefix := range genericPrefixes {
		if strings.HasPrefix(n, prefix) {
			return Generic
		}
	}
	return VendorSpecific
}

var genericLanguage = []*regexp.Regexp{
	regexp.MustCompile(`(?i)configure the \w+ to`),
	regexp.MustCompile(`(?i)verify the \w+ is configured`),
	regexp.MustCompile(`(?i)the \w+ must be configured`),
}

// Shell prompts, file-system paths and system-management commands.
var vendorLanguage = []*regexp.Regexp{
	regexp.MustCompile(`(?i)show configuration`),
	regexp.MustCompile(`(?i)\bset \w+`),
	regexp.MustCompile(`\$ \w+`),
	regexp.MustCompile(`>\s*\w+`),
	regexp.MustCompile(`/etc/`),
	regexp.MustCompile(`\bsystemctl\b`),
	regexp.MustCompile(`\bgrep\b`),
}

// ClassifyRequirement classifies a single requirement. An "SRG-" group is
// authoritative. Otherwise the requirement is Generic only when its text
// uses generic language and carries no vendor-specific signal.
func ClassifyRequirement(group, checkText, fixText string) Kind {
	if strings.HasPrefix(group, "SRG-") {
		return Generic
	}
	text := checkText + "\n" + fixText
	if !matchAny(genericLanguage, text) {
		return VendorSpecific
	}
	if matchAny(vendorLanguage, text) {
		return VendorSpecific
	}
	return Generic
}

// ClassifyDetail classifies a fetched requirement detail.
func ClassifyDetail(d trackr.RequirementDetail) Kind {
	return ClassifyRequirement(d.Group, d.CheckText, d.FixText)
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Filter returns the catalog entries of the given kind.
func Filter(cat trackr.Catalog, kind Kind) trackr.Catalog {
	out := trackr.Catalog{}
	for name, versions := range cat {
		if ClassifyCatalogEntry(name) == kind {
			out[name] = versions
		}
	}
	return out
}

// Search returns entries whose name contains keyword, case-insensitively.
// A nil kind searches every entry.
func Search(cat trackr.Catalog, keyword string, kind *Kind) trackr.Catalog {
	kw := strings.ToLower(keyword)
	out := trackr.Catalog{}
	for name, versions := range cat {
		if kind != nil && ClassifyCatalogEntry(name) != *kind {
			continue
		}
		if strings.Contains(strings.ToLower(name), kw) {
			out[name] = versions
		}
	}
	return out
}
