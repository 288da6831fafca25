// Package tracker integrates with the external task-tracking system. Only
// the request/response contracts the pipelines need are modeled; the
// tracker itself is a black box.
package tracker

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/leokalinowski/purpose-driven-crm/engine/infra/httpx"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

const serviceName = "tracker"

type Client struct {
	http *resty.Client
}

func NewClient(cfg config.TrackerConfig, http *resty.Client) *Client {
	http.SetBaseURL(cfg.BaseURL)
	if cfg.Token != "" {
		http.SetHeader("Authorization", cfg.Token)
	}
	return &Client{http: http}
}

// GetTask fetches the current detail of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&task).
		Get(fmt.Sprintf("/task/%s", taskID))
	if err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", taskID, err)
	}
	if err := httpx.ResponseError(serviceName, resp); err != nil {
		return nil, err
	}
	return &task, nil
}

// SetCustomField writes a value to one of the task's custom fields,
// resolving the field id from the already-fetched task detail.
func (c *Client) SetCustomField(ctx context.Context, task *Task, fieldName, value string) error {
	fieldID, ok := task.FieldID(fieldName)
	if !ok {
		return fmt.Errorf("task %s has no custom field %q", task.ID, fieldName)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"value": value}).
		Post(fmt.Sprintf("/task/%s/field/%s", task.ID, fieldID))
	if err != nil {
		return fmt.Errorf("setting field %q on task %s: %w", fieldName, task.ID, err)
	}
	return httpx.ResponseError(serviceName, resp)
}

// PostComment appends a comment to the task.
func (c *Client) PostComment(ctx context.Context, taskID, text string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"comment_text": text}).
		Post(fmt.Sprintf("/task/%s/comment", taskID))
	if err != nil {
		return fmt.Errorf("commenting on task %s: %w", taskID, err)
	}
	return httpx.ResponseError(serviceName, resp)
}
