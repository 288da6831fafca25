package media

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
)

// StorageClient talks to the blob store: it signs download URLs for
// drive assets and persists final composites under agent/task paths.
type StorageClient struct {
	http   *resty.Client
	bucket string
}

func NewStorageClient(baseURL, apiKey, bucket string, http *resty.Client) *StorageClient {
	http.SetBaseURL(baseURL)
	if apiKey != "" {
		http.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &StorageClient{http: http, bucket: bucket}
}

// SignDownload turns an asset id into a time-bounded download URL.
func (c *StorageClient) SignDownload(ctx context.Context, assetID string) (string, error) {
	var result struct {
		SignedURL string `json:"signed_url"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"expires_in": 3600}).
		SetResult(&result).
		Post(fmt.Sprintf("/object/sign/%s", assetID))
	if err != nil {
		return "", fmt.Errorf("signing download for asset %s: %w", assetID, err)
	}
	if err := httpx.ResponseError("storage", resp); err != nil {
		return "", err
	}
	if result.SignedURL == "" {
		return "", core.NewValidationError("signed download url")
	}
	return result.SignedURL, nil
}

// Persist copies a rendered image into durable storage at the given path
// within the configured bucket and returns its public URL.
func (c *StorageClient) Persist(ctx context.Context, path, sourceURL string) (string, error) {
	var result struct {
		PublicURL string `json:"public_url"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"source_url": sourceURL, "upsert": true}).
		SetResult(&result).
		Post(fmt.Sprintf("/object/copy/%s/%s", c.bucket, path))
	if err != nil {
		return "", fmt.Errorf("persisting %s: %w", path, err)
	}
	if err := httpx.ResponseError("storage", resp); err != nil {
		return "", err
	}
	if result.PublicURL == "" {
		return "", core.NewValidationError("public url")
	}
	return result.PublicURL, nil
}
