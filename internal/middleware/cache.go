package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "responseMeta"
	requestStartKey  = "responseMetaStart"
	cacheHitMetaName = "cache_hit"
)

// WithResponseMeta opens the metadata that cached catalog reads attach to their envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the answer was served from the catalog cache.
func SetCacheHit(c *gin.Context, hit bool) {
	responseMeta(c)[cacheHitMetaName] = hit
}

// ExtractMeta returns the metadata for the response about to be written, stamped with the
// time spent since WithResponseMeta ran.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := responseMeta(c)
	if raw, ok := c.Get(requestStartKey); ok {
		if start, ok := raw.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}

func responseMeta(c *gin.Context) map[string]interface{} {
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
