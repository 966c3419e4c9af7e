package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	archiveMetaKey = "archive_meta"
	cacheHitKey    = "cache_hit"
)

// PublicArchive marks requests to the public archive listings. Handlers in the group report
// whether the payload came from the archive cache through SetArchiveCacheHit.
func PublicArchive() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(archiveMetaKey, map[string]interface{}{cacheHitKey: false})
		c.Next()
	}
}

// SetArchiveCacheHit records whether the archive payload was served from cache.
// It is a no-op outside the PublicArchive group.
func SetArchiveCacheHit(c *gin.Context, hit bool) {
	if meta := ArchiveMeta(c); meta != nil {
		meta[cacheHitKey] = hit
	}
}

// ArchiveMeta returns the response meta of a public archive request, or nil.
func ArchiveMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, ok := c.Get(archiveMetaKey)
	if !ok {
		return nil
	}
	typed, _ := meta.(map[string]interface{})
	return typed
}
