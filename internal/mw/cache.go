package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ResponseCache keeps successful GET bodies in memory for a route group.
// Writes through the same group invalidate everything it holds.
type ResponseCache struct {
	store *cache.Cache
	ttl   time.Duration
}

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: cache.New(ttl, 2*ttl), ttl: ttl}
}

// Invalidate drops every cached response.
func (rc *ResponseCache) Invalidate() {
	rc.store.Flush()
}

// Len reports the number of cached responses, expired ones included until
// the janitor runs.
func (rc *ResponseCache) Len() int {
	return rc.store.ItemCount()
}

// Middleware sets X-Cache to HIT or MISS on GETs. Only the content type is
// replayed from the original response; per-request headers such as the
// request id are not.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			if s := c.Writer.Status(); s >= 200 && s < 300 {
				rc.Invalidate()
			}
			return
		}

		key := cacheKey(c.Request)
		if v, found := rc.store.Get(key); found {
			cached := v.(cachedResponse)
			if cached.contentType != "" {
				c.Writer.Header().Set("Content-Type", cached.contentType)
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			_, _ = c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		c.Writer.Header().Set("X-Cache", "MISS")
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw
		c.Next()

		if s := blw.Status(); s >= 200 && s < 300 {
			rc.store.Set(key, cachedResponse{
				status:      s,
				contentType: blw.Header().Get("Content-Type"),
				body:        blw.body.Bytes(),
			}, rc.ttl)
		}
	}
}

// cacheKey normalises the query so ?a=1&b=2 and ?b=2&a=1 share an entry.
func cacheKey(r *http.Request) string {
	q := r.URL.Query().Encode()
	if q == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + q
}
