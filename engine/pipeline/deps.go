// Package pipeline implements the two workflow executors: the
// webhook-triggered schedule pipeline and the queue-drained
// thumbnail-generation pipeline. Each runs a fixed sequence of steps
// against external services, tracing every step into the run's audit
// trail and guaranteeing exactly one terminal status per invocation.
package pipeline

import (
	"context"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/directory"
	"github.com/leokalinowski/purpose-driven-crm/engine/media"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/engine/social"
	"github.com/leokalinowski/purpose-driven-crm/engine/tracker"
)

// RunRegistry resolves and finalizes workflow runs.
type RunRegistry interface {
	CreateOrResume(ctx context.Context, workflow, key string, triggeredBy core.TriggerType, input map[string]any) (*run.Run, bool, error)
	Finalize(ctx context.Context, id core.ID, status core.StatusType, output map[string]any, errMsg string) error
}

// StepRecorder appends step outcomes; it must never fail the pipeline.
type StepRecorder interface {
	Success(ctx context.Context, runID core.ID, step string, request, response map[string]any)
	Failure(ctx context.Context, runID core.ID, step string, request map[string]any, err error)
	Skip(ctx context.Context, runID core.ID, step string, response map[string]any)
}

// TrackerService is the task-tracking system surface the pipelines use.
type TrackerService interface {
	GetTask(ctx context.Context, taskID string) (*tracker.Task, error)
	SetCustomField(ctx context.Context, task *tracker.Task, fieldName, value string) error
	PostComment(ctx context.Context, taskID, text string) error
}

// DirectoryService reads agent profiles and channel settings from the
// CRM backend.
type DirectoryService interface {
	GetAgentProfile(ctx context.Context, agentID string) (*directory.AgentProfile, error)
	GetSocialSettings(ctx context.Context, agentID string) (*directory.SocialSettings, error)
	GetSocialSettingsByListID(ctx context.Context, listID string) (*directory.SocialSettings, error)
	GetGeneratedContent(ctx context.Context, taskID string) (*directory.GeneratedContent, error)
}

// GenAIService produces generated titles and base images.
type GenAIService interface {
	GenerateTitle(ctx context.Context, req media.TitleRequest) (string, error)
	GenerateImage(ctx context.Context, req media.ImageRequest) (string, error)
}

// CompositorService uploads intermediates and renders title overlays.
type CompositorService interface {
	Upload(ctx context.Context, imageURL string) (string, error)
	RenderTitle(ctx context.Context, assetID, title, aspectRatio string) (string, error)
}

// StorageService signs drive downloads and persists final composites.
type StorageService interface {
	SignDownload(ctx context.Context, assetID string) (string, error)
	Persist(ctx context.Context, path, sourceURL string) (string, error)
}

// CDNService normalizes media URLs for the scheduler.
type CDNService interface {
	Normalize(ctx context.Context, agentID, mediaURL string) (string, error)
}

// SocialService submits assembled scheduling requests.
type SocialService interface {
	SubmitPost(ctx context.Context, req *social.PostRequest) error
}
