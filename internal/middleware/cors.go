package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, " + RequestIDHeader + ", " + ClientHeader
)

type originMatcher struct {
	exact    map[string]struct{}
	suffixes []string
}

// newOriginMatcher accepts exact origins and "https://*.example.com" patterns.
func newOriginMatcher(allowlist []string) *originMatcher {
	m := &originMatcher{exact: make(map[string]struct{}, len(allowlist))}
	for _, origin := range allowlist {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if scheme, host, ok := strings.Cut(origin, "://*."); ok {
			m.suffixes = append(m.suffixes, scheme+"://", "."+host)
			continue
		}
		m.exact[origin] = struct{}{}
	}
	return m
}

func (m *originMatcher) empty() bool {
	return len(m.exact) == 0 && len(m.suffixes) == 0
}

func (m *originMatcher) match(origin string) bool {
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for i := 0; i+1 < len(m.suffixes); i += 2 {
		prefix, suffix := m.suffixes[i], m.suffixes[i+1]
		if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) &&
			len(origin) > len(prefix)+len(suffix) {
			return true
		}
	}
	return false
}

// CORS answers preflight requests. An empty allowlist admits every origin.
func CORS(allowlist []string) gin.HandlerFunc {
	matcher := newOriginMatcher(allowlist)
	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case matcher.empty():
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && matcher.match(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		default:
			origin = ""
		}
		if matcher.empty() || origin != "" {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
