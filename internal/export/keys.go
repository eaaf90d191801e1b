package export

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// KeyList is the YAML form of an export request:
//
//	documents:
//	  - title: Windows_10
//	    version: "3"
//	    release: "2"
//	  - title: Juniper_SRX_Services_Gateway_ALG
//
// Entries without version and release ask for the latest published one.
type KeyList struct {
	Documents []trackr.DocumentKey `yaml:"documents"`
}

// LoadKeys reads a KeyList file.
func LoadKeys(path string) (*KeyList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key list: %w", err)
	}
	var kl KeyList
	if err := yaml.Unmarshal(data, &kl); err != nil {
		return nil, fmt.Errorf("parse key list %s: %w", path, err)
	}
	for i, k := range kl.Documents {
		if k.Title == "" {
			return nil, fmt.Errorf("key list %s: entry %d has no title", path, i+1)
		}
		if (k.Version == "") != (k.Release == "") {
			return nil, fmt.Errorf("key list %s: %s needs both version and release, or neither", path, k.Title)
		}
		if k.Version != "" {
			if err := k.Validate(); err != nil {
				return nil, fmt.Errorf("key list %s: %w", path, err)
			}
		}
	}
	return &kl, nil
}

// Resolve fills in the latest version of every entry that has none.
// latest reports false for unknown titles.
func (kl *KeyList) Resolve(latest func(title string) (trackr.DocumentKey, bool)) ([]trackr.DocumentKey, error) {
	keys := make([]trackr.DocumentKey, 0, len(kl.Documents))
	for _, k := range kl.Documents {
		if k.Version == "" {
			resolved, ok := latest(k.Title)
			if !ok {
				return nil, fmt.Errorf("no published version of %s", k.Title)
			}
			k = resolved
		}
		keys = append(keys, k)
	}
	return keys, nil
}
