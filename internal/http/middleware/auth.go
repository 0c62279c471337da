package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// identityKey is the Gin context key holding the caller's user ID.
	identityKey = "userID"
	// HeaderUserID carries the caller identity set by the trusted proxy.
	HeaderUserID = "X-User-ID"
	// HeaderAdminToken authenticates calls to the management surface.
	HeaderAdminToken = "X-Admin-Token"
)

// Identity copies the X-User-ID header into the Gin context. The API trusts
// the fronting proxy to authenticate users and forward a stable identifier;
// the backend itself holds no user accounts. Requests without the header
// proceed anonymously and are rejected by handlers that require identity.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			c.Set(identityKey, uid)
		}
		c.Next()
	}
}

// UserID returns the caller identity stored by Identity(). The second return
// value reports whether an identity is present.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// AdminToken guards the management surface with a shared bearer token. The
// token may arrive as "Authorization: Bearer <token>" or via X-Admin-Token.
// An empty configured token disables the surface entirely.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "not_found",
				"message":    "management API is not enabled",
			})
			return
		}

		got := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
		if got == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "invalid admin token",
			})
			return
		}
		c.Next()
	}
}
