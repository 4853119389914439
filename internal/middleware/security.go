package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityConfig represents security headers configuration
type SecurityConfig struct {
	HSTS                  bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	FrameOptions          string
	ContentTypeOptions    string
	ReferrerPolicy        string
	CSPDirectives         []string
	// NoStore forbids caching of responses, which may echo policy failures for a password.
	NoStore bool
}

// DefaultSecurityConfig returns default security configuration
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTS:                  true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "no-referrer",
		CSPDirectives: []string{
			"default-src 'none'",
			"frame-ancestors 'none'",
		},
		NoStore: true,
	}
}

// SecurityHeaders sets the configured response headers. Values are computed
// once when the middleware is built.
func SecurityHeaders(config SecurityConfig) gin.HandlerFunc {
	headers := map[string]string{
		"X-Frame-Options":        config.FrameOptions,
		"X-Content-Type-Options": config.ContentTypeOptions,
		"Referrer-Policy":        config.ReferrerPolicy,
	}
	if config.HSTS {
		value := fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			value += "; includeSubDomains"
		}
		headers["Strict-Transport-Security"] = value
	}
	if len(config.CSPDirectives) > 0 {
		headers["Content-Security-Policy"] = strings.Join(config.CSPDirectives, "; ")
	}
	if config.NoStore {
		headers["Cache-Control"] = "no-store"
	}
	for k, v := range headers {
		if v == "" {
			delete(headers, k)
		}
	}

	return func(c *gin.Context) {
		for k, v := range headers {
			c.Header(k, v)
		}
		c.Next()
	}
}
