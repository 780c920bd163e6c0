package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/automatter/rfptrack/internal/identity"
)

const identityKey = "identity"

// Authenticator resolves a request to an identity. *identity.Resolver
// satisfies it; tests use fakes.
type Authenticator interface {
	Resolve(req *http.Request) (*identity.Identity, error)
}

// Auth returns a Gin middleware that resolves the caller's identity and
// aborts with 401 when there is none. Every resource route sits behind it.
func Auth(resolver Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := resolver.Resolve(c.Request)
		if err != nil || ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// Identity returns the resolved identity set by Auth, or nil.
func Identity(c *gin.Context) *identity.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	ident, _ := v.(*identity.Identity)
	return ident
}
