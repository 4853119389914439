package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize  int64 // in bytes
	ErrorMessage string
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:  64 << 10, // 64KB
		ErrorMessage: "Request size exceeds limit",
	}
}

// SizeLimit rejects bodies over MaxBodySize. Declared lengths are checked up
// front; chunked bodies are capped while being read.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Code:    http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("%s: body size exceeds %d bytes", config.ErrorMessage, config.MaxBodySize),
				TraceID: c.GetString(ContextRequestID),
			})
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		}

		c.Next()
	}
}
