package webhook

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leokalinowski/purpose-driven-crm/engine/drain"
	"github.com/leokalinowski/purpose-driven-crm/engine/pipeline"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// DrainRunner exposes one manual drain pass to the HTTP surface.
type DrainRunner interface {
	DrainOnce(ctx context.Context) (drain.Result, error)
}

// Register mounts the webhook and drain endpoints on the router group.
// Non-POST methods fall through to gin's 405 handling.
func Register(r *gin.RouterGroup, svc *Service, drainer DrainRunner) {
	r.POST("/hooks/schedule", func(c *gin.Context) {
		ctx := c.Request.Context()
		result, err := svc.ProcessSchedule(ctx, c.Request)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, scheduleResponse(result))
	})

	r.POST("/hooks/generate", func(c *gin.Context) {
		ctx := c.Request.Context()
		rn, err := svc.ProcessGenerate(ctx, c.Request)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"ok": true, "run_id": rn.ID, "status": rn.Status})
	})

	r.POST("/drain", func(c *gin.Context) {
		ctx := c.Request.Context()
		result, err := drainer.DrainOnce(ctx)
		if err != nil {
			logger.FromContext(ctx).Error("manual drain failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"processed": result.Processed,
			"remaining": result.Remaining,
		})
	})
}

func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromContext(ctx).Error("webhook processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// scheduleResponse flattens the pipeline summary into the caller's
// response envelope.
func scheduleResponse(result *pipeline.ScheduleResult) gin.H {
	resp := gin.H{"ok": true}
	if result == nil {
		return resp
	}
	switch {
	case result.Duplicate:
		resp["duplicate"] = true
	case result.Skipped:
		resp["skipped"] = true
		resp["reason"] = result.Reason
		resp["actual_status"] = result.ActualStatus
	default:
		resp["platforms"] = result.Platforms
		resp["publicationDate"] = result.PublicationDate
	}
	return resp
}
