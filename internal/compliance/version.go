package compliance

import (
	"strconv"
	"strings"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// Latest returns the record with the highest (version, release) pair,
// comparing version as an integer and release as a decimal so "3.1" sorts
// after "3". Unparsable numbers compare as zero. When several records tie,
// the first one in input order is returned; callers should not rely on
// that. ok is false for an empty input.
func Latest(records []trackr.VersionRecord) (latest trackr.VersionRecord, ok bool) {
	var bestV int
	var bestR float64
	for _, rec := range records {
		v, r := versionNumber(rec.Version), releaseNumber(rec.Release)
		if !ok || v > bestV || (v == bestV && r > bestR) {
			latest, bestV, bestR, ok = rec, v, r, true
		}
	}
	return latest, ok
}

// LatestFor returns the latest record of the named catalog entry.
func LatestFor(cat trackr.Catalog, name string) (trackr.VersionRecord, bool) {
	return Latest(cat[name])
}

// LatestKey returns the document key of the latest version of name.
func LatestKey(cat trackr.Catalog, name string) (trackr.DocumentKey, bool) {
	rec, ok := LatestFor(cat, name)
	if !ok {
		return trackr.DocumentKey{}, false
	}
	return rec.Key(name), true
}

func versionNumber(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func releaseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
