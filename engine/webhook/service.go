package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/pipeline"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
)

var (
	ErrBadRequest   = errors.New("invalid webhook payload")
	ErrUnauthorized = errors.New("webhook signature verification failed")
)

// SchedulePipeline drives one schedule invocation to a terminal status.
type SchedulePipeline interface {
	Execute(ctx context.Context, trig pipeline.ScheduleTrigger) (*pipeline.ScheduleResult, error)
}

// Enqueuer records queued generate-thumbnail runs.
type Enqueuer interface {
	Enqueue(ctx context.Context, workflow, key string, triggeredBy core.TriggerType, input map[string]any) (*run.Run, error)
}

// schedulePayload is the provider's event body. Field aliases cover the
// two shapes seen in the wild.
type schedulePayload struct {
	TaskID  string `json:"task_id"`
	Event   string `json:"event"`
	EventID string `json:"event_id"`
}

func (p *schedulePayload) eventID() string {
	if p.EventID != "" {
		return p.EventID
	}
	return p.Event
}

// Service parses, verifies and dispatches webhook deliveries.
type Service struct {
	cfg      config.WebhookConfig
	verifier *Verifier
	schedule SchedulePipeline
	enqueuer Enqueuer
	metrics  *Metrics
}

func NewService(cfg config.WebhookConfig, schedule SchedulePipeline, enqueuer Enqueuer, metrics *Metrics) *Service {
	return &Service{
		cfg:      cfg,
		verifier: NewVerifier(cfg.Secret, cfg.SignatureHeader),
		schedule: schedule,
		enqueuer: enqueuer,
		metrics:  metrics,
	}
}

// ProcessSchedule handles one schedule delivery end to end and returns
// the synchronous result for the caller.
func (s *Service) ProcessSchedule(ctx context.Context, r *http.Request) (*pipeline.ScheduleResult, error) {
	s.metrics.Received(ctx)
	body, sigState, err := s.readAndVerify(r)
	if err != nil {
		return nil, err
	}

	var payload schedulePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, "malformed json")
	}
	if payload.TaskID == "" || payload.eventID() == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, "task_id and event id are required")
	}

	result, err := s.schedule.Execute(ctx, pipeline.ScheduleTrigger{
		TaskID:         payload.TaskID,
		EventID:        payload.eventID(),
		SignatureState: sigState,
	})
	s.metrics.ScheduleOutcome(ctx, result, err)
	return result, err
}

// generatePayload triggers thumbnail generation for a tracker task. The
// run is queued for the drainer rather than executed inline.
type generatePayload struct {
	TaskID  string `json:"task_id"`
	Event   string `json:"event"`
	EventID string `json:"event_id"`
}

// ProcessGenerate enqueues a generate-thumbnail run for later drainage.
func (s *Service) ProcessGenerate(ctx context.Context, r *http.Request) (*run.Run, error) {
	s.metrics.Received(ctx)
	body, _, err := s.readAndVerify(r)
	if err != nil {
		return nil, err
	}

	var payload generatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, "malformed json")
	}
	if payload.TaskID == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, "task_id is required")
	}
	eventID := payload.EventID
	if eventID == "" {
		eventID = payload.Event
	}
	if eventID == "" {
		eventID = payload.TaskID
	}

	key := fmt.Sprintf("generate:%s:%s", payload.TaskID, eventID)
	return s.enqueuer.Enqueue(ctx, run.WorkflowGenerate, key, core.TriggerQueue,
		map[string]any{"task_id": payload.TaskID, "event_id": eventID})
}

func (s *Service) readAndVerify(r *http.Request) ([]byte, string, error) {
	limit := s.cfg.MaxBody
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %s", ErrBadRequest, err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("%w: body exceeds %d bytes", ErrBadRequest, limit)
	}
	state, err := s.verifier.Verify(r.Header.Get(s.cfg.SignatureHeader), body)
	if err != nil {
		s.metrics.Unauthorized(r.Context())
		return nil, "", errors.Join(ErrUnauthorized, err)
	}
	return body, state, nil
}
