package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/service"
)

// AuditDispatcher queues audit rows after the response is written.
type AuditDispatcher interface {
	Dispatch(ctx context.Context, effects ...service.Effect)
}

// Audit records an admin action log entry for successful requests on routes whose
// handlers do not audit on their own.
func Audit(dispatcher AuditDispatcher, action models.AuditAction, model string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if dispatcher == nil || c.Writer.Status() >= 400 {
			return
		}

		entry := models.AdminActionLog{
			Action:     action,
			ModelName:  model,
			ObjectRepr: c.Request.Method + " " + c.FullPath(),
			IPAddress:  c.ClientIP(),
			CreatedAt:  time.Now().UTC(),
		}
		if actor, ok := ActorFromContext(c); ok {
			id := actor.UserID
			entry.UserID = &id
		}
		entry.Details, _ = json.Marshal(map[string]interface{}{
			"query":   c.Request.URL.RawQuery,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		dispatcher.Dispatch(c.Request.Context(), service.AuditEffect(entry))
	}
}
