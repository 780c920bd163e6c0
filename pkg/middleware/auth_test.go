package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/identity"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(req *http.Request) (*identity.Identity, error) {
	if req.Header.Get("Authorization") == "Bearer good" {
		return &identity.Identity{UID: "user-1", Type: identity.TypeUser}, nil
	}
	return nil, apperr.ErrUnauthenticated
}

func TestAuth_Rejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.GET("/", Auth(fakeResolver{}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.JSONEq(t, `{"error":"Not authenticated"}`, rw.Body.String())
}

func TestAuth_SetsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.GET("/", Auth(fakeResolver{}), func(c *gin.Context) {
		ident := Identity(c)
		require.NotNil(t, ident)
		require.Equal(t, "user-1", ident.UID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
}
