package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/crudrouter/internal/domain"
	"github.com/simp-lee/crudrouter/internal/pkg"
)

// ErrorHandler returns a gin middleware that renders the last error attached
// with c.Error as the standard JSON error body. The status comes from
// domain.HTTPStatusCode. Server errors are logged with their full chain;
// handlers that already wrote a response are left alone.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		status := domain.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), "request failed",
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("error", err.Error()),
			)
		}

		if c.Writer.Written() {
			return
		}
		pkg.Error(c, err)
	}
}
