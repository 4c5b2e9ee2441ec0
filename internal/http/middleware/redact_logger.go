package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// sensitiveHeaders are logged masked. Matching is case-insensitive.
// X-Signature is an HMAC over the body and the signing secret's only
// visible artifact, so it never reaches the logs in clear.
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"x-signature":         {},
}

// maskHeader reduces a sensitive header value to a fixed placeholder while
// keeping enough shape to debug (scheme + length for Authorization).
func maskHeader(name, value string) string {
	if value == "" {
		return ""
	}
	if strings.EqualFold(name, "authorization") {
		if i := strings.IndexByte(value, ' '); i > 0 {
			return value[:i] + " ***"
		}
	}
	return "***"
}

// RedactingLogger is Logger plus masked header capture. Use it instead of
// Logger when header-level debugging is wanted without leaking credentials
// or signatures.
func RedactingLogger() gin.HandlerFunc {
	base := Logger()
	return func(c *gin.Context) {
		hdr := redactedHeaders(c.Request.Header)
		c.Set("redacted_headers", hdr)
		if log.Trace().Enabled() {
			log.Trace().Interface("headers", hdr).Str("path", c.Request.URL.Path).Msg("request headers")
		}
		base(c)
	}
}

func redactedHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, vals := range h {
		v := strings.Join(vals, ",")
		if _, sensitive := sensitiveHeaders[strings.ToLower(name)]; sensitive {
			v = maskHeader(name, v)
		}
		out[name] = v
	}
	return out
}

// SlowRequestWarn logs a warning for requests slower than threshold.
// Zero or negative threshold disables the check.
func SlowRequestWarn(threshold time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if threshold <= 0 {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if d := time.Since(start); d > threshold {
			LoggerFrom(c).Warn().
				Dur("latency", d).
				Dur("threshold", threshold).
				Msg("slow request")
		}
	}
}
