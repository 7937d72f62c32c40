package middleware

import (
	"github.com/gin-gonic/gin"

	"vahub-messaging/internal/transport/httpdto"
	vahub_errors "vahub-messaging/pkg/errors"
	"vahub-messaging/pkg/logger"
)

// ErrorHandler translates errors attached by handlers into the JSON
// envelope, with the status and code derived from the error kind.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := vahub_errors.HTTPStatus(err)
		code := vahub_errors.CodeOf(err)

		if l != nil {
			if status >= 500 {
				l.Errorf("request failed: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			} else {
				l.Warnf("request rejected: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			}
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
	}
}
