package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/identity"
	"github.com/automatter/rfptrack/internal/store"
)

type staticVerifier struct{}

func (staticVerifier) Verify(ctx context.Context, raw string) (map[string]interface{}, error) {
	if raw == "provider-token" {
		return map[string]interface{}{"sub": "uid-9", "email": "u9@example.com"}, nil
	}
	return nil, apperr.ErrUnauthenticated
}

func newAuthRouter(s store.Store) (*gin.Engine, *identity.Resolver) {
	gin.SetMode(gin.TestMode)
	resolver := identity.NewResolver(identity.ResolverOptions{
		Secret:     "test-secret",
		CookieName: "session",
		SessionTTL: time.Hour,
		Verifier:   staticVerifier{},
	})
	r := gin.New()
	NewAuthHandler(resolver, s, false).Register(r)
	return r, resolver
}

func TestLogin_MintsSessionAndCreatesUser(t *testing.T) {
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	r, resolver := newAuthRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
	req.Header.Set("Authorization", "Bearer provider-token")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	cookies := rw.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	// the minted cookie resolves back to the same user
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])
	ident, err := resolver.Resolve(next)
	require.NoError(t, err)
	require.Equal(t, "uid-9", ident.UID)

	// user record created with the key convention
	user, err := s.GetByID(context.Background(), "users", "k_uid-9")
	require.NoError(t, err)
	require.Equal(t, "u9@example.com", user["email"])
}

func TestLogin_ExistingUserNotDuplicated(t *testing.T) {
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	r, _ := newAuthRouter(s)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
		req.Header.Set("Authorization", "Bearer provider-token")
		rw := httptest.NewRecorder()
		r.ServeHTTP(rw, req)
		require.Equal(t, http.StatusOK, rw.Code)
	}

	n, err := s.Count(context.Background(), "users", store.QueryOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestLogin_RejectsBadToken(t *testing.T) {
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	r, _ := newAuthRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/login", nil)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	s := store.NewMemory(store.Options{HiddenPrefix: "_"}, nil)
	r, resolver := newAuthRouter(s)

	token, _, err := resolver.MintSession("uid-9", "u9@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	cookies := rw.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.True(t, cookies[0].MaxAge < 0)
}
