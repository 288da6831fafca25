package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/directory"
	"github.com/leokalinowski/purpose-driven-crm/engine/media"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/engine/tracker"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

func generateTestConfig() config.GenerateConfig {
	return config.GenerateConfig{
		ThumbnailField:    "Thumbnail URL",
		TitleMaxLen:       80,
		DefaultBackground: "a bright, modern residential interior with natural light",
		DefaultPhotoURL:   "https://cdn/default-headshot.jpg",
	}
}

func generateTask() *tracker.Task {
	return &tracker.Task{
		ID:     "T9",
		Name:   "Neighborhood Tour: Maple Heights",
		Status: tracker.TaskStatus{Status: "In Progress"},
		List:   tracker.ListRef{ID: "L9"},
		CustomFields: []tracker.CustomField{
			{ID: "f1", Name: "Transcript", Value: "welcome to maple heights..."},
		},
	}
}

func generateSettings() *directory.SocialSettings {
	return &directory.SocialSettings{
		AgentID:         "A9",
		TrackerListID:   "L9",
		ReferencePhotos: []string{"https://cdn/headshot-1.jpg", "https://cdn/headshot-2.jpg"},
		Backgrounds:     []string{"a sunny front porch"},
		BrandGuidelines: "warm, approachable",
	}
}

type generateHarness struct {
	pipe       *Generate
	registry   *mockRegistry
	steps      *recordingSteps
	tracker    *mockTracker
	directory  *mockDirectory
	genai      *mockGenAI
	compositor *mockCompositor
	storage    *mockStorage
}

func newGenerateHarness(t *testing.T) *generateHarness {
	t.Helper()
	h := &generateHarness{
		registry:   &mockRegistry{},
		steps:      &recordingSteps{},
		tracker:    &mockTracker{},
		directory:  &mockDirectory{},
		genai:      &mockGenAI{},
		compositor: &mockCompositor{},
		storage:    &mockStorage{},
	}
	h.pipe = NewGenerate(
		generateTestConfig(), h.registry, h.steps, h.tracker, h.directory,
		h.genai, h.compositor, h.storage,
	)
	h.pipe.pick = func(int) int { return 0 }
	return h
}

func claimedRun() *run.Run {
	return &run.Run{
		ID:           core.ID("run-9"),
		WorkflowName: run.WorkflowGenerate,
		Status:       core.StatusRunning,
		TriggeredBy:  core.TriggerQueue,
		Input:        map[string]any{"task_id": "T9", "event_id": "E9"},
	}
}

// expectHappyPath wires every mock through persistence; individual tests
// override the tracker write-back expectations.
func (h *generateHarness) expectHappyPath() {
	h.tracker.On("GetTask", mock.Anything, "T9").Return(generateTask(), nil)
	h.directory.On("GetSocialSettingsByListID", mock.Anything, "L9").
		Return(generateSettings(), nil)
	h.genai.On("GenerateTitle", mock.Anything, media.TitleRequest{
		Transcript: "welcome to maple heights...",
		Guidelines: "warm, approachable",
	}).Return("Inside Maple Heights", nil)
	for _, ratio := range []string{media.RatioPortrait, media.RatioLandscape} {
		h.genai.On("GenerateImage", mock.Anything, media.ImageRequest{
			ReferencePhotoURL: "https://cdn/headshot-1.jpg",
			Background:        "a sunny front porch",
			AspectRatio:       ratio,
		}).Return("https://genai/"+ratio, nil)
		h.compositor.On("Upload", mock.Anything, "https://genai/"+ratio).
			Return("asset-"+ratio, nil)
		h.compositor.On("RenderTitle", mock.Anything, "asset-"+ratio, "Inside Maple Heights", ratio).
			Return("https://compositor/"+ratio, nil)
	}
	h.storage.On("Persist", mock.Anything, "A9/T9/portrait.png", "https://compositor/9:16").
		Return("https://store/portrait.png", nil)
	h.storage.On("Persist", mock.Anything, "A9/T9/landscape.png", "https://compositor/16:9").
		Return("https://store/landscape.png", nil)
}

func TestGenerateExecute(t *testing.T) {
	t.Run("Should produce both composites and update the task", func(t *testing.T) {
		h := newGenerateHarness(t)
		h.expectHappyPath()
		h.tracker.On("SetCustomField", mock.Anything, mock.Anything, "Thumbnail URL",
			"https://store/landscape.png").Return(nil)
		h.tracker.On("PostComment", mock.Anything, "T9", mock.MatchedBy(func(text string) bool {
			return strings.Contains(text, "Inside Maple Heights") &&
				strings.Contains(text, "https://store/landscape.png") &&
				strings.Contains(text, "https://store/portrait.png")
		})).Return(nil)
		h.registry.On("Finalize", mock.Anything, core.ID("run-9"), core.StatusSuccess,
			mock.MatchedBy(func(output map[string]any) bool {
				update, ok := output["task_update"].(map[string]any)
				return ok && update["field_update"] == "ok" && update["comment"] == "ok" &&
					output["title"] == "Inside Maple Heights"
			}), "").Return(nil)

		err := h.pipe.Execute(context.Background(), claimedRun())
		require.NoError(t, err)
		h.tracker.AssertExpectations(t)
		h.registry.AssertExpectations(t)
	})

	t.Run("Should still succeed when the comment fails after the artifacts are durable", func(t *testing.T) {
		h := newGenerateHarness(t)
		h.expectHappyPath()
		h.tracker.On("SetCustomField", mock.Anything, mock.Anything, "Thumbnail URL",
			"https://store/landscape.png").Return(nil)
		h.tracker.On("PostComment", mock.Anything, "T9", mock.Anything).
			Return(core.NewExternalServiceError("tracker", 500, "comment rejected"))
		h.registry.On("Finalize", mock.Anything, core.ID("run-9"), core.StatusSuccess,
			mock.MatchedBy(func(output map[string]any) bool {
				update, ok := output["task_update"].(map[string]any)
				return ok && update["field_update"] == "ok" &&
					strings.Contains(update["comment"].(string), "comment rejected")
			}), "").Return(nil)

		err := h.pipe.Execute(context.Background(), claimedRun())
		require.NoError(t, err)
		h.registry.AssertExpectations(t)
	})

	t.Run("Should fall back to the truncated task name when title generation fails", func(t *testing.T) {
		h := newGenerateHarness(t)
		h.tracker.On("GetTask", mock.Anything, "T9").Return(generateTask(), nil)
		h.directory.On("GetSocialSettingsByListID", mock.Anything, "L9").
			Return(generateSettings(), nil)
		h.genai.On("GenerateTitle", mock.Anything, mock.Anything).
			Return("", core.NewExternalServiceError("genai", 503, "model busy"))
		for _, ratio := range []string{media.RatioPortrait, media.RatioLandscape} {
			h.genai.On("GenerateImage", mock.Anything, mock.MatchedBy(func(req media.ImageRequest) bool {
				return req.AspectRatio == ratio
			})).Return("https://genai/"+ratio, nil)
			h.compositor.On("Upload", mock.Anything, "https://genai/"+ratio).
				Return("asset-"+ratio, nil)
			h.compositor.On("RenderTitle", mock.Anything, "asset-"+ratio,
				"Neighborhood Tour: Maple Heights", ratio).
				Return("https://compositor/"+ratio, nil)
		}
		h.storage.On("Persist", mock.Anything, mock.Anything, mock.Anything).
			Return("https://store/x.png", nil)
		h.tracker.On("SetCustomField", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil)
		h.tracker.On("PostComment", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.registry.On("Finalize", mock.Anything, core.ID("run-9"), core.StatusSuccess,
			mock.MatchedBy(func(output map[string]any) bool {
				return output["title"] == "Neighborhood Tour: Maple Heights"
			}), "").Return(nil)

		err := h.pipe.Execute(context.Background(), claimedRun())
		require.NoError(t, err)
		h.compositor.AssertExpectations(t)
	})

	t.Run("Should use the default photo when the agent has none", func(t *testing.T) {
		h := newGenerateHarness(t)
		settings := generateSettings()
		settings.ReferencePhotos = nil
		h.tracker.On("GetTask", mock.Anything, "T9").Return(generateTask(), nil)
		h.directory.On("GetSocialSettingsByListID", mock.Anything, "L9").Return(settings, nil)
		h.genai.On("GenerateTitle", mock.Anything, mock.Anything).Return("A Title", nil)
		h.genai.On("GenerateImage", mock.Anything, mock.MatchedBy(func(req media.ImageRequest) bool {
			return req.ReferencePhotoURL == "https://cdn/default-headshot.jpg"
		})).Return("https://genai/img", nil)
		h.compositor.On("Upload", mock.Anything, mock.Anything).Return("asset", nil)
		h.compositor.On("RenderTitle", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("https://compositor/img", nil)
		h.storage.On("Persist", mock.Anything, mock.Anything, mock.Anything).
			Return("https://store/x.png", nil)
		h.tracker.On("SetCustomField", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil)
		h.tracker.On("PostComment", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.registry.On("Finalize", mock.Anything, core.ID("run-9"), core.StatusSuccess,
			mock.Anything, "").Return(nil)

		err := h.pipe.Execute(context.Background(), claimedRun())
		require.NoError(t, err)
		h.genai.AssertExpectations(t)
	})

	t.Run("Should finalize failed when image generation fails", func(t *testing.T) {
		h := newGenerateHarness(t)
		h.tracker.On("GetTask", mock.Anything, "T9").Return(generateTask(), nil)
		h.directory.On("GetSocialSettingsByListID", mock.Anything, "L9").
			Return(generateSettings(), nil)
		h.genai.On("GenerateTitle", mock.Anything, mock.Anything).Return("A Title", nil)
		h.genai.On("GenerateImage", mock.Anything, mock.Anything).
			Return("", core.NewExternalServiceError("genai", 500, "render failed"))
		h.registry.On("Finalize", mock.Anything, core.ID("run-9"), core.StatusFailed,
			mock.Anything, mock.Anything).Return(nil)

		err := h.pipe.Execute(context.Background(), claimedRun())
		require.Error(t, err)
		h.storage.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
		h.registry.AssertExpectations(t)
	})

	t.Run("Should finalize failed when the input has no task reference", func(t *testing.T) {
		h := newGenerateHarness(t)
		rn := claimedRun()
		rn.Input = map[string]any{}
		h.registry.On("Finalize", mock.Anything, core.ID("run-9"), core.StatusFailed,
			mock.Anything, mock.Anything).Return(nil)

		err := h.pipe.Execute(context.Background(), rn)
		require.Error(t, err)
		h.tracker.AssertNotCalled(t, "GetTask", mock.Anything, mock.Anything)
	})
}

func TestTruncate(t *testing.T) {
	t.Run("Should leave short names untouched and clip long ones", func(t *testing.T) {
		assert.Equal(t, "short", truncate("short", 80))
		long := strings.Repeat("a", 100)
		assert.Len(t, truncate(long, 80), 80)
		assert.Equal(t, long, truncate(long, 0))
	})
}
