// Package social submits assembled posts to the external scheduling
// service.
package social

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

const serviceName = "social"

// PostRequest is the scheduler's submission payload.
type PostRequest struct {
	AutoPublish     bool       `json:"autoPublish"`
	Draft           bool       `json:"draft"`
	PublicationDate string     `json:"publicationDate"`
	Text            string     `json:"text"`
	MediaURLs       []string   `json:"mediaUrls"`
	Providers       []Provider `json:"providers"`
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg config.SocialConfig, http *resty.Client) *Client {
	http.SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		http.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{http: http}
}

// SubmitPost schedules the post; any non-2xx is fatal to the caller.
func (c *Client) SubmitPost(ctx context.Context, req *PostRequest) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/posts")
	if err != nil {
		return fmt.Errorf("submitting scheduling request: %w", err)
	}
	return httpx.ResponseError(serviceName, resp)
}
