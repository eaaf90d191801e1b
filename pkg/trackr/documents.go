package trackr

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

var titleReplacer = strings.NewReplacer(" ", "_", "/", "_")

// normalizeTitle maps a human title onto the service's name form.
func normalizeTitle(title string) string {
	return titleReplacer.Replace(strings.TrimSpace(title))
}

func documentPath(prefix string, key DocumentKey) string {
	return fmt.Sprintf("/%s/%s/%s/%s", prefix, url.PathEscape(normalizeTitle(key.Title)), key.Version, key.Release)
}

// APIInfo returns the service root document.
func (c *Client) APIInfo(ctx context.Context) (APIInfo, error) {
	var info APIInfo
	if err := c.get(ctx, "/", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// ListDocuments returns every STIG and SRG with its published versions.
// The service mixes both kinds; see the classify package to separate them.
func (c *Client) ListDocuments(ctx context.Context) (Catalog, error) {
	return c.listCatalog(ctx, "/stig")
}

// GetDocument returns a document with its requirement summaries.
func (c *Client) GetDocument(ctx context.Context, key DocumentKey) (*DocumentSummary, error) {
	return c.getDocument(ctx, "stig", key)
}

// GetRequirement returns the full detail for one requirement of a document.
func (c *Client) GetRequirement(ctx context.Context, key DocumentKey, vulnID string) (*RequirementDetail, error) {
	return c.getRequirement(ctx, "stig", key, vulnID)
}

// ListSCAP returns every SCAP benchmark with its published versions.
func (c *Client) ListSCAP(ctx context.Context) (Catalog, error) {
	return c.listCatalog(ctx, "/scap")
}

// GetSCAPDocument returns a SCAP benchmark with its requirement summaries.
func (c *Client) GetSCAPDocument(ctx context.Context, key DocumentKey) (*DocumentSummary, error) {
	return c.getDocument(ctx, "scap", key)
}

// GetSCAPRequirement returns one requirement of a SCAP benchmark.
func (c *Client) GetSCAPRequirement(ctx context.Context, key DocumentKey, vulnID string) (*RequirementDetail, error) {
	return c.getRequirement(ctx, "scap", key, vulnID)
}

func (c *Client) listCatalog(ctx context.Context, path string) (Catalog, error) {
	var cat Catalog
	if err := c.get(ctx, path, &cat); err != nil {
		return nil, err
	}
	if cat == nil {
		cat = Catalog{}
	}
	return cat, nil
}

func (c *Client) getDocument(ctx context.Context, prefix string, key DocumentKey) (*DocumentSummary, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var doc DocumentSummary
	if err := c.get(ctx, documentPath(prefix, key), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) getRequirement(ctx context.Context, prefix string, key DocumentKey, vulnID string) (*RequirementDetail, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateVulnID(vulnID); err != nil {
		return nil, err
	}
	var req RequirementDetail
	if err := c.get(ctx, documentPath(prefix, key)+"/"+vulnID, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = vulnID
	}
	return &req, nil
}
