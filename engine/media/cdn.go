package media

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
)

// CDNClient normalizes media URLs into account-scoped CDN URLs suitable
// for the social scheduler.
type CDNClient struct {
	http *resty.Client
}

func NewCDNClient(baseURL string, http *resty.Client) *CDNClient {
	http.SetBaseURL(baseURL)
	return &CDNClient{http: http}
}

// Normalize passes a download URL through CDN normalization scoped to the
// owner's account.
func (c *CDNClient) Normalize(ctx context.Context, agentID, mediaURL string) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"account_id": agentID, "source_url": mediaURL}).
		SetResult(&result).
		Post("/normalize")
	if err != nil {
		return "", fmt.Errorf("normalizing media url: %w", err)
	}
	if err := httpx.ResponseError("cdn", resp); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", core.NewValidationError("normalized media url")
	}
	return result.URL, nil
}
