package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/logger"
)

// Handler is the single place that turns a handler's returned error into an
// HTTP response. Internal details are logged server-side and never reach
// the client.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := err.(*AppError)
		if !ok {
			appErr = Internal(err)
		}

		log := logger.HTTP()
		if appErr.StatusCode >= 500 {
			log.Error().Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
		} else {
			log.Warn().Str("code", appErr.Code).Msg(appErr.Message)
		}

		if !c.Writer.Written() {
			c.JSON(appErr.StatusCode, appErr.ToResponse())
		}
	}
}

// Recovery recovers from a panic in a handler and reports it as an internal
// error instead of crashing the process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP().Error().Interface("panic", r).Msg("recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
			}
		}()
		c.Next()
	}
}

// Abort aborts the request with the given AppError.
func Abort(c *gin.Context, err *AppError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
