package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/Hizashii/money/pkg/logger"
	"github.com/Hizashii/money/pkg/metrics"
)

// Recovery turns a handler panic, usually a malformed PDF tripping the text
// decoder, into a 500 that carries the request ID. m may be nil.
func Recovery(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			route := routeOf(c)
			m.PanicRecovered(route)

			attrs := []any{
				"panic", rec,
				"method", c.Request.Method,
				"route", route,
				"stack", string(debug.Stack()),
			}
			if form := c.Request.MultipartForm; form != nil {
				attrs = append(attrs, "files", len(form.File["files"]))
			}
			logger.WithContext(c.Request.Context()).Error("handler panicked", attrs...)

			// the status line is already out; all that is left is to stop the chain
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}
