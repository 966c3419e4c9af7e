package requestmeta

import (
	"context"

	"github.com/gin-gonic/gin"
)

const maxUserAgent = 512

// Meta describes the client of the current request.
type Meta struct {
	IPAddress string
	UserAgent string
}

type ctxKey struct{}

// Middleware stores the client IP and user agent in the request's context.Context
// so audit writes can record them without touching gin.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := c.GetHeader("User-Agent")
		if len(ua) > maxUserAgent {
			ua = ua[:maxUserAgent]
		}
		meta := Meta{IPAddress: c.ClientIP(), UserAgent: ua}
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), meta))
		c.Next()
	}
}

// NewContext returns a copy of ctx carrying meta.
func NewContext(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, ctxKey{}, meta)
}

// FromContext returns the request metadata, or the zero Meta outside a request.
func FromContext(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	meta, _ := ctx.Value(ctxKey{}).(Meta)
	return meta
}
