package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/media"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/engine/tracker"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
	"github.com/leokalinowski/purpose-driven-crm/pkg/template"
)

// Generate pipeline step names.
const (
	StepGenFetchTask     = "fetch_task"
	StepGenResolveOwner  = "resolve_owner_settings"
	StepSelectPhoto      = "select_reference_photo"
	StepSelectBackground = "select_background"
	StepExtractContext   = "extract_context"
	StepGenerateTitle    = "generate_title"
	StepPersist          = "persist_composites"
	StepSetThumbnail     = "set_thumbnail_field"
	StepPostComment      = "post_comment"
	StepGenFinalize      = "finalize"
)

// Context custom fields tolerated as absent on the task.
const (
	fieldTranscript = "Transcript"
	fieldPrompt     = "Prompt"
)

const commentTemplate = `{{#title}}"{{title}}"
{{/title}}Thumbnails are ready for {{task_name}}.
Landscape: {{landscape_url}}
Portrait: {{portrait_url}}`

// Generate executes the queue-drained thumbnail-generation pipeline.
type Generate struct {
	cfg        config.GenerateConfig
	registry   RunRegistry
	steps      StepRecorder
	tracker    TrackerService
	directory  DirectoryService
	genai      GenAIService
	compositor CompositorService
	storage    StorageService

	// pick selects an index in [0,n); override in tests for determinism.
	pick func(n int) int
}

func NewGenerate(
	cfg config.GenerateConfig,
	registry RunRegistry,
	steps StepRecorder,
	trackerSvc TrackerService,
	directorySvc DirectoryService,
	genaiSvc GenAIService,
	compositorSvc CompositorService,
	storageSvc StorageService,
) *Generate {
	return &Generate{
		cfg:        cfg,
		registry:   registry,
		steps:      steps,
		tracker:    trackerSvc,
		directory:  directorySvc,
		genai:      genaiSvc,
		compositor: compositorSvc,
		storage:    storageSvc,
		pick:       rand.Intn,
	}
}

// Execute processes one claimed run to a terminal status. The run is
// already in running state; every exit path finalizes it exactly once.
func (p *Generate) Execute(ctx context.Context, rn *run.Run) (err error) {
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

	taskID, _ := rn.Input["task_id"].(string)
	if taskID == "" {
		return core.NewValidationError("task_id")
	}

	task, err := p.tracker.GetTask(ctx, taskID)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepGenFetchTask, map[string]any{"task_id": taskID}, err)
		return err
	}
	p.steps.Success(ctx, rn.ID, StepGenFetchTask, map[string]any{"task_id": taskID},
		map[string]any{"name": task.Name, "list_id": task.List.ID})

	settings, err := p.directory.GetSocialSettingsByListID(ctx, task.List.ID)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepGenResolveOwner, map[string]any{"list_id": task.List.ID}, err)
		return err
	}
	p.steps.Success(ctx, rn.ID, StepGenResolveOwner, map[string]any{"list_id": task.List.ID},
		map[string]any{"agent_id": settings.AgentID})

	photoURL, err := p.selectReferencePhoto(settings.ReferencePhotos)
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepSelectPhoto, nil, err)
		return err
	}
	p.steps.Success(ctx, rn.ID, StepSelectPhoto, nil, map[string]any{"photo_url": photoURL})

	background := p.selectBackground(settings.Backgrounds)
	p.steps.Success(ctx, rn.ID, StepSelectBackground, nil, map[string]any{"background": background})

	transcript, _ := task.Field(fieldTranscript)
	prompt, _ := task.Field(fieldPrompt)
	p.steps.Success(ctx, rn.ID, StepExtractContext, nil, map[string]any{
		"has_transcript": transcript != "",
		"has_prompt":     prompt != "",
	})

	title := p.generateTitle(ctx, rn, task.Name, transcript, prompt, settings.BrandGuidelines)

	composites := map[string]string{}
	for _, ratio := range []struct{ name, value string }{
		{"portrait", media.RatioPortrait},
		{"landscape", media.RatioLandscape},
	} {
		generateStep := "generate_image_" + ratio.name
		imageURL, gerr := p.genai.GenerateImage(ctx, media.ImageRequest{
			ReferencePhotoURL: photoURL,
			Background:        background,
			AspectRatio:       ratio.value,
		})
		if gerr != nil {
			p.steps.Failure(ctx, rn.ID, generateStep, map[string]any{"aspect_ratio": ratio.value}, gerr)
			return gerr
		}
		p.steps.Success(ctx, rn.ID, generateStep, map[string]any{"aspect_ratio": ratio.value},
			map[string]any{"url": imageURL})

		compositeStep := "composite_" + ratio.name
		assetID, cerr := p.compositor.Upload(ctx, imageURL)
		if cerr == nil {
			composites[ratio.name], cerr = p.compositor.RenderTitle(ctx, assetID, title, ratio.value)
		}
		if cerr != nil {
			p.steps.Failure(ctx, rn.ID, compositeStep, map[string]any{"aspect_ratio": ratio.value}, cerr)
			return cerr
		}
		p.steps.Success(ctx, rn.ID, compositeStep, map[string]any{"aspect_ratio": ratio.value},
			map[string]any{"url": composites[ratio.name]})
	}

	urls := map[string]string{}
	for name, sourceURL := range composites {
		path := fmt.Sprintf("%s/%s/%s.png", settings.AgentID, task.ID, name)
		publicURL, perr := p.storage.Persist(ctx, path, sourceURL)
		if perr != nil {
			p.steps.Failure(ctx, rn.ID, StepPersist, map[string]any{"path": path}, perr)
			return perr
		}
		urls[name] = publicURL
	}
	p.steps.Success(ctx, rn.ID, StepPersist, nil, map[string]any{
		"portrait_url":  urls["portrait"],
		"landscape_url": urls["landscape"],
	})

	// The artifacts are durable now; the tracker write-back is
	// best-effort and its per-action outcome is recorded in the output.
	taskUpdate := p.updateTask(ctx, rn, task, title, urls)

	output := map[string]any{
		"title":         title,
		"task_name":     task.Name,
		"portrait_url":  urls["portrait"],
		"landscape_url": urls["landscape"],
		"task_update":   taskUpdate,
	}
	p.steps.Success(ctx, rn.ID, StepGenFinalize, nil, output)
	finalized = true
	return p.registry.Finalize(ctx, rn.ID, core.StatusSuccess, output, "")
}

func (p *Generate) selectReferencePhoto(pool []string) (string, error) {
	if len(pool) > 0 {
		return pool[p.pick(len(pool))], nil
	}
	if p.cfg.DefaultPhotoURL != "" {
		return p.cfg.DefaultPhotoURL, nil
	}
	return "", core.NewValidationError("reference photo")
}

func (p *Generate) selectBackground(pool []string) string {
	if len(pool) > 0 {
		return pool[p.pick(len(pool))]
	}
	return p.cfg.DefaultBackground
}

// generateTitle asks the generative service for a short title, falling
// back to the truncated task name when generation yields nothing. A
// failed generation call is recorded but not fatal.
func (p *Generate) generateTitle(ctx context.Context, rn *run.Run, taskName, transcript, prompt, guidelines string) string {
	title, err := p.genai.GenerateTitle(ctx, media.TitleRequest{
		Transcript: transcript,
		Prompt:     prompt,
		Guidelines: guidelines,
	})
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepGenerateTitle, nil, err)
		title = ""
	}
	if strings.TrimSpace(title) == "" {
		title = truncate(taskName, p.cfg.TitleMaxLen)
		p.steps.Success(ctx, rn.ID, StepGenerateTitle, nil,
			map[string]any{"title": title, "fallback": true})
		return title
	}
	p.steps.Success(ctx, rn.ID, StepGenerateTitle, nil, map[string]any{"title": title})
	return title
}

// updateTask performs the two independent tracker write-backs. Either
// failure is recorded per-action; neither fails the run.
func (p *Generate) updateTask(ctx context.Context, rn *run.Run, task *tracker.Task, title string, urls map[string]string) map[string]any {
	outcome := map[string]any{"field_update": "ok", "comment": "ok"}

	if err := p.tracker.SetCustomField(ctx, task, p.cfg.ThumbnailField, urls["landscape"]); err != nil {
		p.steps.Failure(ctx, rn.ID, StepSetThumbnail, map[string]any{"field": p.cfg.ThumbnailField}, err)
		outcome["field_update"] = err.Error()
	} else {
		p.steps.Success(ctx, rn.ID, StepSetThumbnail, map[string]any{"field": p.cfg.ThumbnailField}, nil)
	}

	comment, err := template.Render(commentTemplate, map[string]string{
		"title":         title,
		"task_name":     task.Name,
		"landscape_url": urls["landscape"],
		"portrait_url":  urls["portrait"],
	})
	if err == nil {
		err = p.tracker.PostComment(ctx, task.ID, comment)
	}
	if err != nil {
		p.steps.Failure(ctx, rn.ID, StepPostComment, nil, err)
		outcome["comment"] = err.Error()
	} else {
		p.steps.Success(ctx, rn.ID, StepPostComment, nil, nil)
	}
	return outcome
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}
