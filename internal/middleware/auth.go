package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the service-to-service key
const APIKeyHeader = "X-Internal-API-Key"

// InternalAuthMiddleware accepts requests carrying one of the configured keys,
// either in X-Internal-API-Key or as an Authorization bearer token. apiKeys is
// a comma-separated list so a key can be rotated without downtime.
func InternalAuthMiddleware(apiKeys string) gin.HandlerFunc {
	var keys [][]byte
	for _, k := range strings.Split(apiKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "server misconfigured: internal API key not set",
			})
		}
	}

	return func(c *gin.Context) {
		if !validKey(presentedKey(c), keys) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}

func presentedKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// validKey compares against every key so timing does not reveal which matched
func validKey(presented string, keys [][]byte) bool {
	if presented == "" {
		return false
	}
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(presented), k)
	}
	return match == 1
}
