package middleware

import (
	"settlepos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
	LocaleKey       = "locale"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Localize picks the error message locale from Accept-Language, falling back
// to the configured default.
func Localize(defaultLocale string) gin.HandlerFunc {
	def := apierror.NormalizeLocale(defaultLocale)
	return func(c *gin.Context) {
		locale := def
		if h := c.GetHeader("Accept-Language"); h != "" {
			if l, ok := apierror.SupportedLocale(h); ok {
				locale = l
			}
		}
		c.Set(LocaleKey, locale)
		c.Next()
	}
}

// Locale returns the request's locale.
func Locale(c *gin.Context) string {
	if l := c.GetString(LocaleKey); l != "" {
		return l
	}
	return apierror.DefaultLocale
}
