package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader  = "X-Request-ID"
	ContextRequestID = "request_id"
)

// RequestID tags every request with an id, reusing the caller's X-Request-ID
// when present so ids correlate across clients and logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
