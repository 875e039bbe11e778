package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-gate-api/pkg/middleware/requestid"
)

const requestStartKey = "request_start"

// WithResponseMeta stamps the request start so handlers can report processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// ExtractMeta returns the response metadata for the current request.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := make(map[string]interface{}, 2)
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	if v, exists := c.Get(requestStartKey); exists {
		if start, ok := v.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
