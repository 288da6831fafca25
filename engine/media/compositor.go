package media

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
)

// CompositorClient calls the image-compositing service: upload an
// intermediate, then request a title-overlay render of it.
type CompositorClient struct {
	http *resty.Client
}

func NewCompositorClient(baseURL, apiKey string, http *resty.Client) *CompositorClient {
	http.SetBaseURL(baseURL)
	if apiKey != "" {
		http.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &CompositorClient{http: http}
}

// Upload registers an intermediate image by URL and returns its asset id.
func (c *CompositorClient) Upload(ctx context.Context, imageURL string) (string, error) {
	var result struct {
		AssetID string `json:"asset_id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"source_url": imageURL}).
		SetResult(&result).
		Post("/assets")
	if err != nil {
		return "", fmt.Errorf("uploading to compositor: %w", err)
	}
	if err := httpx.ResponseError("compositor", resp); err != nil {
		return "", err
	}
	if result.AssetID == "" {
		return "", core.NewValidationError("compositor asset id")
	}
	return result.AssetID, nil
}

// RenderTitle composites the title text over the uploaded asset and
// returns the rendered image URL.
func (c *CompositorClient) RenderTitle(ctx context.Context, assetID, title, aspectRatio string) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"asset_id":     assetID,
			"title":        title,
			"aspect_ratio": aspectRatio,
		}).
		SetResult(&result).
		Post("/renders")
	if err != nil {
		return "", fmt.Errorf("rendering title composite: %w", err)
	}
	if err := httpx.ResponseError("compositor", resp); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", core.NewValidationError("composite url")
	}
	return result.URL, nil
}
