// Package media wraps the generative, compositing, storage and CDN
// services the pipelines call. Each is a black box returning either a
// usable payload or an HTTP error status.
package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
)

// Aspect ratios produced for every thumbnail.
const (
	RatioPortrait  = "9:16"
	RatioLandscape = "16:9"
)

// GenAIClient calls the generative text/image service.
type GenAIClient struct {
	http *resty.Client
}

func NewGenAIClient(baseURL, apiKey string, http *resty.Client) *GenAIClient {
	http.SetBaseURL(baseURL)
	if apiKey != "" {
		http.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &GenAIClient{http: http}
}

// TitleRequest seeds title generation from whatever context the task
// carries; absent fields are simply omitted from the prompt.
type TitleRequest struct {
	Transcript string
	Prompt     string
	Guidelines string
}

// GenerateTitle produces a short video title. An empty generation result
// is returned as-is; the caller applies its fallback.
func (c *GenAIClient) GenerateTitle(ctx context.Context, req TitleRequest) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"task":       "short-title",
			"transcript": req.Transcript,
			"prompt":     req.Prompt,
			"guidelines": req.Guidelines,
		}).
		SetResult(&result).
		Post("/text/generate")
	if err != nil {
		return "", fmt.Errorf("generating title: %w", err)
	}
	if err := httpx.ResponseError("genai", resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

// ImageRequest constrains generation to preserve the reference subject's
// likeness and exclude extraneous people, text and watermarks.
type ImageRequest struct {
	ReferencePhotoURL string
	Background        string
	AspectRatio       string
}

// GenerateImage produces a base composited image and returns its URL.
func (c *GenAIClient) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"reference_image": req.ReferencePhotoURL,
			"prompt": fmt.Sprintf(
				"Place the person from the reference photo in %s. "+
					"Preserve the subject's exact likeness. "+
					"No other people, no text, no watermarks.",
				req.Background,
			),
			"aspect_ratio": req.AspectRatio,
		}).
		SetResult(&result).
		Post("/images/generate")
	if err != nil {
		return "", fmt.Errorf("generating image (%s): %w", req.AspectRatio, err)
	}
	if err := httpx.ResponseError("genai", resp); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", core.NewValidationError("generated image url")
	}
	return result.URL, nil
}
