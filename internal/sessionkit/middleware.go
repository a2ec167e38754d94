package sessionkit

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// IdentityContextKey is where RequireAccess stores the verified identity.
const IdentityContextKey = "auth_identity"

// RequireAccess verifies the access cookie and injects the identity into the
// request context. An expired token is answered distinctly so clients know to
// call the refresh endpoint instead of forcing a new login; every other
// failure requires re-authentication.
func RequireAccess(configuration ServerConfig, codec *TokenCodec) gin.HandlerFunc {
	if codec == nil {
		panic("token codec is required")
	}
	return func(contextGin *gin.Context) {
		accessCookie, cookieErr := contextGin.Request.Cookie(configuration.AccessCookieName)
		if cookieErr != nil || accessCookie == nil || accessCookie.Value == "" {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		identity, verifyErr := codec.Verify(accessCookie.Value, KindAccess)
		if verifyErr != nil {
			if errors.Is(verifyErr, ErrTokenExpired) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token_expired"})
				return
			}
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		contextGin.Set(IdentityContextKey, identity)
		contextGin.Next()
	}
}

// IdentityFromContext returns the identity RequireAccess stored, if any.
func IdentityFromContext(contextGin *gin.Context) (string, bool) {
	value, found := contextGin.Get(IdentityContextKey)
	if !found {
		return "", false
	}
	identity, ok := value.(string)
	if !ok || identity == "" {
		return "", false
	}
	return identity, true
}
