package trackr

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	vulnIDRe  = regexp.MustCompile(`^V-\d{6}$`)
	cciIDRe   = regexp.MustCompile(`^CCI-\d{6}$`)
	controlRe = regexp.MustCompile(`^[A-Z]+-\d+$`)
	versionRe = regexp.MustCompile(`^\d+$`)
	releaseRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

func validate(re *regexp.Regexp, field, value string) error {
	if !re.MatchString(value) {
		return &ValidationError{Field: field, Value: value, Pattern: re.String()}
	}
	return nil
}

// ValidateVulnID checks a requirement id such as V-214518.
func ValidateVulnID(s string) error { return validate(vulnIDRe, "vuln id", s) }

// ValidateCCIID checks a CCI id such as CCI-000213.
func ValidateCCIID(s string) error { return validate(cciIDRe, "CCI id", s) }

// ValidateControl checks an RMF control id such as AC-1.
func ValidateControl(s string) error { return validate(controlRe, "RMF control", s) }

// ValidateVersion checks a document version number.
func ValidateVersion(s string) error { return validate(versionRe, "version", s) }

// ValidateRelease checks a document release number ("3" or "3.1").
func ValidateRelease(s string) error { return validate(releaseRe, "release", s) }

// ValidateRevision checks an RMF revision. Only 4 and 5 are published.
func ValidateRevision(rev int) error {
	if rev != 4 && rev != 5 {
		return &ValidationError{Field: "RMF revision", Value: strconv.Itoa(rev), Pattern: "4 or 5"}
	}
	return nil
}

// NormalizeControl upper-cases and trims a control id for comparison.
func NormalizeControl(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
