package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/directory"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/engine/social"
	"github.com/leokalinowski/purpose-driven-crm/engine/tracker"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
	"github.com/leokalinowski/purpose-driven-crm/pkg/template"
)

// Schedule pipeline step names, logged in execution order.
const (
	StepVerifySignature  = "verify_signature"
	StepIdempotencyCheck = "idempotency_check"
	StepFetchTask        = "fetch_task"
	StepStatusGate       = "status_gate"
	StepExtractFields    = "extract_fields"
	StepResolveOwner     = "resolve_owner_settings"
	StepFetchContent     = "fetch_generated_content"
	StepResolveAssetURL  = "resolve_asset_url"
	StepNormalizeMedia   = "normalize_media_url"
	StepBuildProviders   = "build_provider_list"
	StepSubmitSchedule   = "submit_schedule"
	StepFinalize         = "finalize"

	StepError = "error"
)

const publicationDateLayout = "2006-01-02T15:04:05"

const defaultPostText = "New video from {{agent_name}}!{{#title}} {{title}}{{/title}}"

// ScheduleTrigger is the verified webhook event driving one invocation.
type ScheduleTrigger struct {
	TaskID  string
	EventID string
	// SignatureState records how verification concluded: "verified" or
	// "not_applicable" (permissive mode, no secret or header present).
	SignatureState string
}

// ScheduleResult is the synchronous response summary for the caller.
type ScheduleResult struct {
	Duplicate       bool     `json:"duplicate,omitempty"`
	Skipped         bool     `json:"skipped,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	ActualStatus    string   `json:"actual_status,omitempty"`
	AgentName       string   `json:"agent_name,omitempty"`
	Platforms       []string `json:"platforms,omitempty"`
	PublicationDate string   `json:"publicationDate,omitempty"`
}

// Schedule executes the webhook-driven social-post scheduling pipeline.
type Schedule struct {
	cfg       config.ScheduleConfig
	registry  RunRegistry
	steps     StepRecorder
	tracker   TrackerService
	directory DirectoryService
	storage   StorageService
	cdn       CDNService
	social    SocialService
	loc       *time.Location
}

func NewSchedule(
	cfg config.ScheduleConfig,
	registry RunRegistry,
	steps StepRecorder,
	trackerSvc TrackerService,
	directorySvc DirectoryService,
	storageSvc StorageService,
	cdnSvc CDNService,
	socialSvc SocialService,
) (*Schedule, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	return &Schedule{
		cfg:       cfg,
		registry:  registry,
		steps:     steps,
		tracker:   trackerSvc,
		directory: directorySvc,
		storage:   storageSvc,
		cdn:       cdnSvc,
		social:    socialSvc,
		loc:       loc,
	}, nil
}

// IdempotencyKey derives the run key from the triggering event.
func IdempotencyKey(taskID, eventID string) string {
	return fmt.Sprintf("schedule:%s:%s", taskID, eventID)
}

// Execute runs the pipeline to a terminal run status. Every outcome path
// finalizes the run exactly once, including panics in the body.
func (p *Schedule) Execute(ctx context.Context, trig ScheduleTrigger) (result *ScheduleResult, err error) {
	key := IdempotencyKey(trig.TaskID, trig.EventID)
	input := map[string]any{"task_id": trig.TaskID, "event_id": trig.EventID}
	rn, duplicate, err := p.registry.CreateOrResume(ctx, run.WorkflowSchedule, key, core.TriggerWebhook, input)
	if err != nil {
		return nil, fmt.Errorf("resolving run for key %s: %w", key, err)
	}
	if duplicate {
		logger.FromContext(ctx).Info("duplicate webhook delivery", "key", key, "run_id", rn.ID)
		return &ScheduleResult{Duplicate: true}, nil
	}

	finalized := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		if err == nil || finalized {
			return
		}
		p.steps.Failure(ctx, rn.ID, StepError, nil, err)
		if ferr := p.registry.Finalize(ctx, rn.ID, core.StatusFailed, nil, err.Error()); ferr != nil {
			logger.FromContext(ctx).Error("failed to finalize failed run", "run_id", rn.ID, "error", ferr)
		}
	}()

	p.steps.Success(ctx, rn.ID, StepVerifySignature, nil, map[string]any{"mode": trig.SignatureState})
	p.steps.Success(ctx, rn.ID, StepIdempotencyCheck, map[string]any{"key": key}, nil)

	task, err := p.tracker.GetTask(ctx, trig.TaskID)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepFetchTask, map[string]any{"task_id": trig.TaskID}, err)
		return nil, err
	}
	p.steps.Success(ctx, rn.ID, StepFetchTask, map[string]any{"task_id": trig.TaskID},
		map[string]any{"name": task.Name, "status": task.Status.Status})

	if !strings.EqualFold(task.Status.Status, p.cfg.GateStatus) {
		p.steps.Skip(ctx, rn.ID, StepStatusGate, map[string]any{
			"required": p.cfg.GateStatus,
			"actual":   task.Status.Status,
		})
		finalized = true
		output := map[string]any{"reason": "wrong_status", "actual_status": task.Status.Status}
		if ferr := p.registry.Finalize(ctx, rn.ID, core.StatusSkipped, output, ""); ferr != nil {
			return nil, ferr
		}
		return &ScheduleResult{Skipped: true, Reason: "wrong_status", ActualStatus: task.Status.Status}, nil
	}
	p.steps.Success(ctx, rn.ID, StepStatusGate, nil, map[string]any{"status": task.Status.Status})

	fields, err := p.extractFields(task)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepExtractFields, nil, err)
		return nil, err
	}
	p.steps.Success(ctx, rn.ID, StepExtractFields, nil, map[string]any{
		"agent_id":   fields.agentID,
		"asset_id":   fields.assetID,
		"publish_ms": fields.publishMS,
	})

	profile, err := p.directory.GetAgentProfile(ctx, fields.agentID)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepResolveOwner, map[string]any{"agent_id": fields.agentID}, err)
		return nil, err
	}
	settings, err := p.directory.GetSocialSettings(ctx, fields.agentID)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepResolveOwner, map[string]any{"agent_id": fields.agentID}, err)
		return nil, err
	}
	p.steps.Success(ctx, rn.ID, StepResolveOwner, map[string]any{"agent_id": fields.agentID},
		map[string]any{"agent_name": profile.FullName()})

	// Best-effort: previously generated copy; defaults apply when absent.
	content, cerr := p.directory.GetGeneratedContent(ctx, trig.TaskID)
	if cerr != nil {
		p.steps.Failure(ctx, rn.ID, StepFetchContent, nil, cerr)
		content = nil
	} else {
		p.steps.Success(ctx, rn.ID, StepFetchContent, nil, map[string]any{"found": content != nil})
	}

	downloadURL, err := p.storage.SignDownload(ctx, fields.assetID)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepResolveAssetURL, map[string]any{"asset_id": fields.assetID}, err)
		return nil, err
	}
	p.steps.Success(ctx, rn.ID, StepResolveAssetURL, map[string]any{"asset_id": fields.assetID}, nil)

	mediaURL, err := p.cdn.Normalize(ctx, fields.agentID, downloadURL)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepNormalizeMedia, nil, err)
		return nil, err
	}
	p.steps.Success(ctx, rn.ID, StepNormalizeMedia, nil, map[string]any{"url": mediaURL})

	youtubeTitle := task.Name
	if content != nil && content.Title != "" {
		youtubeTitle = content.Title
	}
	providers := social.BuildProviders(settings, youtubeTitle)
	if len(providers) == 0 {
		err = core.NewValidationError("configured social channels")
		p.steps.Failure(ctx, rn.ID, StepBuildProviders, nil, err)
		return nil, err
	}
	platforms := make([]string, 0, len(providers))
	for _, prov := range providers {
		platforms = append(platforms, string(prov.Network))
	}
	p.steps.Success(ctx, rn.ID, StepBuildProviders, nil, map[string]any{"platforms": platforms})

	publicationDate := time.UnixMilli(fields.publishMS).In(p.loc).Format(publicationDateLayout)
	text, err := p.buildPostText(profile.FullName(), content)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepSubmitSchedule, nil, err)
		return nil, err
	}
	req := &social.PostRequest{
		AutoPublish:     true,
		Draft:           false,
		PublicationDate: publicationDate,
		Text:            text,
		MediaURLs:       []string{mediaURL},
		Providers:       providers,
	}
	if err = p.social.SubmitPost(ctx, req); err != nil {
		p.steps.Failure(ctx, rn.ID, StepSubmitSchedule, map[string]any{"platforms": platforms}, err)
		return nil, err
	}
	p.steps.Success(ctx, rn.ID, StepSubmitSchedule,
		map[string]any{"platforms": platforms, "publicationDate": publicationDate}, nil)

	output := map[string]any{
		"agent_name":      profile.FullName(),
		"platforms":       platforms,
		"publicationDate": publicationDate,
	}
	p.steps.Success(ctx, rn.ID, StepFinalize, nil, output)
	finalized = true
	if err = p.registry.Finalize(ctx, rn.ID, core.StatusSuccess, output, ""); err != nil {
		return nil, err
	}
	return &ScheduleResult{
		AgentName:       profile.FullName(),
		Platforms:       platforms,
		PublicationDate: publicationDate,
	}, nil
}

type scheduleFields struct {
	agentID   string
	assetID   string
	publishMS int64
}

// extractFields pulls the required structured fields off the task; any
// missing field aborts the run.
func (p *Schedule) extractFields(task *tracker.Task) (*scheduleFields, error) {
	agentID, ok := task.Field(p.cfg.AgentField)
	if !ok {
		return nil, core.NewValidationError(p.cfg.AgentField)
	}
	assetID, ok := task.Field(p.cfg.AssetField)
	if !ok {
		return nil, core.NewValidationError(p.cfg.AssetField)
	}
	publishRaw, ok := task.Field(p.cfg.PublishField)
	if !ok {
		return nil, core.NewValidationError(p.cfg.PublishField)
	}
	publishMS, err := strconv.ParseInt(publishRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s %q: %w", p.cfg.PublishField, publishRaw, err)
	}
	return &scheduleFields{agentID: agentID, assetID: assetID, publishMS: publishMS}, nil
}

func (p *Schedule) buildPostText(agentName string, content *directory.GeneratedContent) (string, error) {
	if content != nil && strings.TrimSpace(content.Copy) != "" {
		return content.Copy, nil
	}
	title := ""
	if content != nil {
		title = content.Title
	}
	return template.Render(defaultPostText, map[string]string{
		"agent_name": agentName,
		"title":      title,
	})
}
