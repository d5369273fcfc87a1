package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"edufiliova/backend/internal/sessioncache"

	"github.com/gin-gonic/gin"
)

const (
	headerCache        = "X-Cache"
	headerCacheControl = "Cache-Control"
	headerVary         = "Vary"
)

func setCacheHeaders(c *gin.Context, ttl time.Duration, hit bool) {
	if hit {
		c.Header(headerCache, "HIT")
	} else {
		c.Header(headerCache, "MISS")
	}
	c.Header(headerCacheControl, "private, max-age="+strconv.Itoa(int(ttl/time.Second)))
	c.Header(headerVary, "Authorization")
}

// serveCached 先查会话缓存，未命中时合并回源并回填
func (h *Handler) serveCached(c *gin.Context, key sessioncache.Key, field string, fetch func(context.Context) (any, error)) {
	ttl := h.cache.TTL(key.Prefix)
	if v, ok := h.cache.Get(key); ok {
		setCacheHeaders(c, ttl, true)
		c.JSON(http.StatusOK, gin.H{field: v})
		return
	}

	ctx := c.Request.Context()
	v, err, _ := h.sf.Do(key.String(), func() (any, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		h.cache.Set(key, data)
		return data, nil
	})
	if err != nil {
		log.Printf("read-through failed key=%s err=%v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load data"})
		return
	}
	setCacheHeaders(c, ttl, false)
	c.JSON(http.StatusOK, gin.H{field: v})
}
