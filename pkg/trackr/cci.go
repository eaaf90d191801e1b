package trackr

import "context"

// ListCCIs returns every CCI id with its definition text.
func (c *Client) ListCCIs(ctx context.Context) (map[string]string, error) {
	var ccis map[string]string
	if err := c.get(ctx, "/cci", &ccis); err != nil {
		return nil, err
	}
	if ccis == nil {
		ccis = map[string]string{}
	}
	return ccis, nil
}

// GetCCI returns one CCI with its assessment procedures.
func (c *Client) GetCCI(ctx context.Context, id string) (*CCIDetail, error) {
	if err := ValidateCCIID(id); err != nil {
		return nil, err
	}
	var detail CCIDetail
	if err := c.get(ctx, "/cci/"+id, &detail); err != nil {
		return nil, err
	}
	if detail.ID == "" {
		detail.ID = id
	}
	return &detail, nil
}
