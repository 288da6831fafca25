package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/directory"
	"github.com/leokalinowski/purpose-driven-crm/engine/media"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/engine/social"
	"github.com/leokalinowski/purpose-driven-crm/engine/tracker"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) CreateOrResume(ctx context.Context, workflow, key string, triggeredBy core.TriggerType, input map[string]any) (*run.Run, bool, error) {
	args := m.Called(ctx, workflow, key, triggeredBy, input)
	if r := args.Get(0); r != nil {
		return r.(*run.Run), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *mockRegistry) Finalize(ctx context.Context, id core.ID, status core.StatusType, output map[string]any, errMsg string) error {
	args := m.Called(ctx, id, status, output, errMsg)
	return args.Error(0)
}

// recordedStep captures one step-log call for order and outcome checks.
type recordedStep struct {
	Step    string
	Status  core.StatusType
	Request map[string]any
	Reply   map[string]any
	Err     error
}

// recordingSteps is an in-memory StepRecorder; it mirrors the real
// logger's never-fails contract.
type recordingSteps struct {
	mu    sync.Mutex
	steps []recordedStep
}

func (r *recordingSteps) Success(_ context.Context, _ core.ID, step string, req, reply map[string]any) {
	r.append(recordedStep{Step: step, Status: core.StatusSuccess, Request: req, Reply: reply})
}

func (r *recordingSteps) Failure(_ context.Context, _ core.ID, step string, req map[string]any, err error) {
	r.append(recordedStep{Step: step, Status: core.StatusFailed, Request: req, Err: err})
}

func (r *recordingSteps) Skip(_ context.Context, _ core.ID, step string, reply map[string]any) {
	r.append(recordedStep{Step: step, Status: core.StatusSkipped, Reply: reply})
}

func (r *recordingSteps) append(s recordedStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
}

func (r *recordingSteps) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.steps))
	for i, s := range r.steps {
		out[i] = s.Step
	}
	return out
}

func (r *recordingSteps) find(step string) (recordedStep, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.steps {
		if s.Step == step {
			return s, true
		}
	}
	return recordedStep{}, false
}

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) GetTask(ctx context.Context, taskID string) (*tracker.Task, error) {
	args := m.Called(ctx, taskID)
	if t := args.Get(0); t != nil {
		return t.(*tracker.Task), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTracker) SetCustomField(ctx context.Context, task *tracker.Task, fieldName, value string) error {
	args := m.Called(ctx, task, fieldName, value)
	return args.Error(0)
}

func (m *mockTracker) PostComment(ctx context.Context, taskID, text string) error {
	args := m.Called(ctx, taskID, text)
	return args.Error(0)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetAgentProfile(ctx context.Context, agentID string) (*directory.AgentProfile, error) {
	args := m.Called(ctx, agentID)
	if p := args.Get(0); p != nil {
		return p.(*directory.AgentProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) GetSocialSettings(ctx context.Context, agentID string) (*directory.SocialSettings, error) {
	args := m.Called(ctx, agentID)
	if s := args.Get(0); s != nil {
		return s.(*directory.SocialSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) GetSocialSettingsByListID(ctx context.Context, listID string) (*directory.SocialSettings, error) {
	args := m.Called(ctx, listID)
	if s := args.Get(0); s != nil {
		return s.(*directory.SocialSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDirectory) GetGeneratedContent(ctx context.Context, taskID string) (*directory.GeneratedContent, error) {
	args := m.Called(ctx, taskID)
	if c := args.Get(0); c != nil {
		return c.(*directory.GeneratedContent), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGenAI struct {
	mock.Mock
}

func (m *mockGenAI) GenerateTitle(ctx context.Context, req media.TitleRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGenAI) GenerateImage(ctx context.Context, req media.ImageRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockCompositor struct {
	mock.Mock
}

func (m *mockCompositor) Upload(ctx context.Context, imageURL string) (string, error) {
	args := m.Called(ctx, imageURL)
	return args.String(0), args.Error(1)
}

func (m *mockCompositor) RenderTitle(ctx context.Context, assetID, title, aspectRatio string) (string, error) {
	args := m.Called(ctx, assetID, title, aspectRatio)
	return args.String(0), args.Error(1)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) SignDownload(ctx context.Context, assetID string) (string, error) {
	args := m.Called(ctx, assetID)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) Persist(ctx context.Context, path, sourceURL string) (string, error) {
	args := m.Called(ctx, path, sourceURL)
	return args.String(0), args.Error(1)
}

type mockCDN struct {
	mock.Mock
}

func (m *mockCDN) Normalize(ctx context.Context, agentID, mediaURL string) (string, error) {
	args := m.Called(ctx, agentID, mediaURL)
	return args.String(0), args.Error(1)
}

type mockSocial struct {
	mock.Mock
}

func (m *mockSocial) SubmitPost(ctx context.Context, req *social.PostRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
