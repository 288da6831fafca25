package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/drain"
	"github.com/leokalinowski/purpose-driven-crm/engine/pipeline"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

type mockSchedulePipeline struct {
	mock.Mock
}

func (m *mockSchedulePipeline) Execute(ctx context.Context, trig pipeline.ScheduleTrigger) (*pipeline.ScheduleResult, error) {
	args := m.Called(ctx, trig)
	if res := args.Get(0); res != nil {
		return res.(*pipeline.ScheduleResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, workflow, key string, triggeredBy core.TriggerType, input map[string]any) (*run.Run, error) {
	args := m.Called(ctx, workflow, key, triggeredBy, input)
	if r := args.Get(0); r != nil {
		return r.(*run.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDrainRunner struct {
	mock.Mock
}

func (m *mockDrainRunner) DrainOnce(ctx context.Context) (drain.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(drain.Result), args.Error(1)
}

func newTestRouter(t *testing.T, cfg config.WebhookConfig, sched *mockSchedulePipeline, enq *mockEnqueuer, dr *mockDrainRunner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	svc := NewService(cfg, sched, enq, metrics)
	r := gin.New()
	Register(r.Group("/"), svc, dr)
	return r
}

func postJSON(r http.Handler, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScheduleEndpoint(t *testing.T) {
	cfg := config.WebhookConfig{SignatureHeader: "x-provider-signature", MaxBody: 1 << 20}
	body := []byte(`{"task_id":"T1","event":"E1"}`)

	t.Run("Should return the success summary", func(t *testing.T) {
		sched := &mockSchedulePipeline{}
		sched.On("Execute", mock.Anything, pipeline.ScheduleTrigger{
			TaskID: "T1", EventID: "E1", SignatureState: SignatureNotApplicable,
		}).Return(&pipeline.ScheduleResult{
			AgentName:       "Dana Smith",
			Platforms:       []string{"FACEBOOK"},
			PublicationDate: "2026-09-01T10:00:00",
		}, nil)
		r := newTestRouter(t, cfg, sched, &mockEnqueuer{}, &mockDrainRunner{})

		w := postJSON(r, "/hooks/schedule", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["ok"])
		assert.Equal(t, []any{"FACEBOOK"}, resp["platforms"])
		assert.Equal(t, "2026-09-01T10:00:00", resp["publicationDate"])
		sched.AssertExpectations(t)
	})
	t.Run("Should return the skipped summary with the observed status", func(t *testing.T) {
		sched := &mockSchedulePipeline{}
		sched.On("Execute", mock.Anything, mock.Anything).Return(&pipeline.ScheduleResult{
			Skipped: true, Reason: "wrong_status", ActualStatus: "Open",
		}, nil)
		r := newTestRouter(t, cfg, sched, &mockEnqueuer{}, &mockDrainRunner{})

		w := postJSON(r, "/hooks/schedule", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["ok"])
		assert.Equal(t, true, resp["skipped"])
		assert.Equal(t, "wrong_status", resp["reason"])
		assert.Equal(t, "Open", resp["actual_status"])
	})
	t.Run("Should short-circuit duplicates", func(t *testing.T) {
		sched := &mockSchedulePipeline{}
		sched.On("Execute", mock.Anything, mock.Anything).
			Return(&pipeline.ScheduleResult{Duplicate: true}, nil)
		r := newTestRouter(t, cfg, sched, &mockEnqueuer{}, &mockDrainRunner{})

		w := postJSON(r, "/hooks/schedule", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["duplicate"])
	})
	t.Run("Should return 401 for a bad signature without invoking the pipeline", func(t *testing.T) {
		secured := config.WebhookConfig{
			Secret: "topsecret", SignatureHeader: "x-provider-signature", MaxBody: 1 << 20,
		}
		sched := &mockSchedulePipeline{}
		r := newTestRouter(t, secured, sched, &mockEnqueuer{}, &mockDrainRunner{})

		w := postJSON(r, "/hooks/schedule", body, map[string]string{
			"x-provider-signature": signBody("wrong", body),
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		sched.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})
	t.Run("Should mark a verified delivery as such for the pipeline", func(t *testing.T) {
		secured := config.WebhookConfig{
			Secret: "topsecret", SignatureHeader: "x-provider-signature", MaxBody: 1 << 20,
		}
		sched := &mockSchedulePipeline{}
		sched.On("Execute", mock.Anything, pipeline.ScheduleTrigger{
			TaskID: "T1", EventID: "E1", SignatureState: SignatureVerified,
		}).Return(&pipeline.ScheduleResult{Platforms: []string{"FACEBOOK"}}, nil)
		r := newTestRouter(t, secured, sched, &mockEnqueuer{}, &mockDrainRunner{})

		w := postJSON(r, "/hooks/schedule", body, map[string]string{
			"x-provider-signature": signBody("topsecret", body),
		})
		assert.Equal(t, http.StatusOK, w.Code)
		sched.AssertExpectations(t)
	})
	t.Run("Should return 400 for malformed or incomplete payloads", func(t *testing.T) {
		r := newTestRouter(t, cfg, &mockSchedulePipeline{}, &mockEnqueuer{}, &mockDrainRunner{})

		assert.Equal(t, http.StatusBadRequest, postJSON(r, "/hooks/schedule", []byte("{"), nil).Code)
		assert.Equal(t, http.StatusBadRequest, postJSON(r, "/hooks/schedule", []byte(`{"event":"E1"}`), nil).Code)
	})
	t.Run("Should return 405 for non-POST methods", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		metrics, err := NewMetrics(nil)
		require.NoError(t, err)
		svc := NewService(cfg, &mockSchedulePipeline{}, &mockEnqueuer{}, metrics)
		r := gin.New()
		r.HandleMethodNotAllowed = true
		Register(r.Group("/"), svc, &mockDrainRunner{})

		req := httptest.NewRequest(http.MethodGet, "/hooks/schedule", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
	t.Run("Should return 500 when the pipeline fails", func(t *testing.T) {
		sched := &mockSchedulePipeline{}
		sched.On("Execute", mock.Anything, mock.Anything).
			Return(nil, core.NewValidationError("Publish Date"))
		r := newTestRouter(t, cfg, sched, &mockEnqueuer{}, &mockDrainRunner{})

		w := postJSON(r, "/hooks/schedule", body, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Publish Date")
	})
}

func TestGenerateEndpoint(t *testing.T) {
	cfg := config.WebhookConfig{SignatureHeader: "x-provider-signature", MaxBody: 1 << 20}

	t.Run("Should enqueue a generate run and return 202", func(t *testing.T) {
		enq := &mockEnqueuer{}
		enq.On("Enqueue", mock.Anything, run.WorkflowGenerate, "generate:T9:E9", core.TriggerQueue,
			map[string]any{"task_id": "T9", "event_id": "E9"}).
			Return(&run.Run{ID: core.ID("r1"), Status: core.StatusQueued}, nil)
		r := newTestRouter(t, cfg, &mockSchedulePipeline{}, enq, &mockDrainRunner{})

		w := postJSON(r, "/hooks/generate", []byte(`{"task_id":"T9","event_id":"E9"}`), nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "queued", resp["status"])
		enq.AssertExpectations(t)
	})
	t.Run("Should require a task reference", func(t *testing.T) {
		r := newTestRouter(t, cfg, &mockSchedulePipeline{}, &mockEnqueuer{}, &mockDrainRunner{})
		w := postJSON(r, "/hooks/generate", []byte(`{"event":"E9"}`), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDrainEndpoint(t *testing.T) {
	cfg := config.WebhookConfig{SignatureHeader: "x-provider-signature", MaxBody: 1 << 20}

	t.Run("Should report processed and remaining counts", func(t *testing.T) {
		dr := &mockDrainRunner{}
		dr.On("DrainOnce", mock.Anything).Return(drain.Result{Processed: 5, Remaining: 2}, nil)
		r := newTestRouter(t, cfg, &mockSchedulePipeline{}, &mockEnqueuer{}, dr)

		w := postJSON(r, "/drain", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["ok"])
		assert.Equal(t, float64(5), resp["processed"])
		assert.Equal(t, float64(2), resp["remaining"])
	})
}
