package logger

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/pkg/config"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

// Reporter forwards server-side failures to Rollbar.
type Reporter struct {
	enabled bool
	logger  *zap.Logger
}

// NewReporter configures the global rollbar client. Without a token it stays disabled.
func NewReporter(cfg *config.Config, l *zap.Logger) *Reporter {
	if l == nil {
		l = zap.NewNop()
	}
	enabled := cfg != nil && cfg.Rollbar.Token != ""
	if enabled {
		rollbar.SetToken(cfg.Rollbar.Token)
		rollbar.SetEnvironment(cfg.Env)
		rollbar.SetCodeVersion(cfg.Rollbar.CodeVersion)
		if cfg.Rollbar.ServerHost != "" {
			rollbar.SetServerHost(cfg.Rollbar.ServerHost)
		}
	}
	rollbar.SetEnabled(enabled)
	return &Reporter{enabled: enabled, logger: l}
}

// Enabled reports whether events leave the process.
func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Report sends err with optional extras.
func (r *Reporter) Report(err error, extras map[string]interface{}) {
	if !r.Enabled() || err == nil {
		return
	}
	if extras == nil {
		rollbar.Error(err)
		return
	}
	rollbar.Error(err, extras)
}

// Close flushes pending events.
func (r *Reporter) Close() {
	if r.Enabled() {
		rollbar.Close()
	}
}

// Recovery converts panics into a 500 envelope and reports 5xx responses.
func (r *Reporter) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				if r != nil {
					r.logger.Error("panic recovered", zap.Error(err), zap.String("path", c.Request.URL.Path))
				}
				if r.Enabled() {
					rollbar.RequestError(rollbar.CRIT, c.Request, err)
				}
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, appErrors.ErrInternal.Message))
				c.Abort()
			}
		}()

		c.Next()

		if c.Writer.Status() < http.StatusInternalServerError || !r.Enabled() {
			return
		}
		if appErr := response.LastError(c); appErr != nil {
			var cause error = appErr
			if appErr.Err != nil {
				cause = appErr.Err
			}
			rollbar.RequestErrorWithExtras(rollbar.ERR, c.Request, cause, map[string]interface{}{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
		}
	}
}
