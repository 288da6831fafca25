// Package directory reads agent profiles, channel settings and generated
// content from the CRM backend's REST API. The backend owns these tables;
// the orchestrator only consumes them.
package directory

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

const serviceName = "directory"

type Client struct {
	http *resty.Client
}

func NewClient(cfg config.DirectoryConfig, http *resty.Client) *Client {
	http.SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		http.SetHeader("apikey", cfg.APIKey)
		http.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{http: http}
}

// GetAgentProfile looks up an agent profile by id. Absence yields
// ErrNotConfigured.
func (c *Client) GetAgentProfile(ctx context.Context, agentID string) (*AgentProfile, error) {
	var profiles []AgentProfile
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+agentID).
		SetResult(&profiles).
		Get("/agent_profiles")
	if err != nil {
		return nil, fmt.Errorf("fetching agent profile %s: %w", agentID, err)
	}
	if err := httpx.ResponseError(serviceName, resp); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: agent profile %s", ErrNotConfigured, agentID)
	}
	return &profiles[0], nil
}

// GetSocialSettings returns an agent's channel configuration.
func (c *Client) GetSocialSettings(ctx context.Context, agentID string) (*SocialSettings, error) {
	return c.querySettings(ctx, "agent_id", agentID)
}

// GetSocialSettingsByListID reverse-looks-up settings by the tracker list
// the agent's tasks live in.
func (c *Client) GetSocialSettingsByListID(ctx context.Context, listID string) (*SocialSettings, error) {
	return c.querySettings(ctx, "tracker_list_id", listID)
}

func (c *Client) querySettings(ctx context.Context, column, value string) (*SocialSettings, error) {
	var settings []SocialSettings
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(column, "eq."+value).
		SetResult(&settings).
		Get("/social_settings")
	if err != nil {
		return nil, fmt.Errorf("fetching social settings by %s=%s: %w", column, value, err)
	}
	if err := httpx.ResponseError(serviceName, resp); err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		return nil, fmt.Errorf("%w: social settings for %s=%s", ErrNotConfigured, column, value)
	}
	return &settings[0], nil
}

// GetGeneratedContent fetches previously generated copy for a task.
// Returns (nil, nil) when none exists; callers fall back to defaults.
func (c *Client) GetGeneratedContent(ctx context.Context, taskID string) (*GeneratedContent, error) {
	var content []GeneratedContent
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("task_id", "eq."+taskID).
		SetResult(&content).
		Get("/generated_content")
	if err != nil {
		return nil, fmt.Errorf("fetching generated content for task %s: %w", taskID, err)
	}
	if err := httpx.ResponseError(serviceName, resp); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, nil
	}
	return &content[0], nil
}
