package trackr

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListRMFControls returns the control ids and titles of an RMF revision.
// The list is served either flat or wrapped in a "controls" object; both
// forms are accepted.
func (c *Client) ListRMFControls(ctx context.Context, revision int) (map[string]string, error) {
	if err := ValidateRevision(revision); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/rmf/%d", revision)
	var raw map[string]json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	if wrapped, ok := raw["controls"]; ok {
		var controls map[string]string
		if err := json.Unmarshal(wrapped, &controls); err != nil {
			return nil, fmt.Errorf("parse %s controls: %w", path, err)
		}
		if controls == nil {
			controls = map[string]string{}
		}
		return controls, nil
	}

	controls := make(map[string]string, len(raw))
	for id, v := range raw {
		var title string
		if err := json.Unmarshal(v, &title); err != nil {
			continue
		}
		controls[id] = title
	}
	return controls, nil
}

// GetRMFControl returns one RMF control with its CCI mappings.
func (c *Client) GetRMFControl(ctx context.Context, revision int, control string) (*RMFControlDetail, error) {
	if err := ValidateRevision(revision); err != nil {
		return nil, err
	}
	control = NormalizeControl(control)
	if err := ValidateControl(control); err != nil {
		return nil, err
	}
	var detail RMFControlDetail
	if err := c.get(ctx, fmt.Sprintf("/rmf/%d/%s", revision, control), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}
