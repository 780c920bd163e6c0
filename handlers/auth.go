package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/identity"
	"github.com/automatter/rfptrack/internal/store"
	"github.com/automatter/rfptrack/pkg/logger"
)

// AuthHandler exchanges a provider ID token for a session cookie and
// revokes it on logout. These routes sit outside the auth middleware:
// login is what creates the session in the first place.
type AuthHandler struct {
	resolver *identity.Resolver
	store    store.Store
	secure   bool
}

func NewAuthHandler(resolver *identity.Resolver, s store.Store, secureCookie bool) *AuthHandler {
	return &AuthHandler{resolver: resolver, store: s, secure: secureCookie}
}

func (h *AuthHandler) Register(r gin.IRoutes) {
	r.GET("/api/login", h.login)
	r.GET("/api/logout", h.logout)
}

func (h *AuthHandler) login(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	ident, err := h.resolver.VerifyIDToken(c.Request.Context(), raw)
	if err != nil {
		c.JSON(apperr.Status(err), gin.H{"error": err.Error()})
		return
	}

	user, err := h.upsertUser(c, ident)
	if err != nil {
		c.JSON(apperr.Status(err), gin.H{"error": err.Error()})
		return
	}

	token, _, err := h.resolver.MintSession(ident.UID, ident.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.resolver.CookieName(), token, int(h.resolver.SessionTTL().Seconds()), "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// upsertUser keeps a users document per provider uid, addressed through
// the key convention so the uid never has to be the document id.
func (h *AuthHandler) upsertUser(c *gin.Context, ident *identity.Identity) (store.Doc, error) {
	ctx := c.Request.Context()
	user, err := h.store.GetByID(ctx, "users", "k_"+ident.UID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	created, err := h.store.Post(ctx, "users", store.Doc{
		"key":   ident.UID,
		"email": ident.Email,
	}, ident)
	if err != nil {
		return nil, err
	}
	logger.Infof("created user record for uid=%s", ident.UID)
	return created, nil
}

func (h *AuthHandler) logout(c *gin.Context) {
	if raw, err := c.Cookie(h.resolver.CookieName()); err == nil && raw != "" {
		if err := h.resolver.RevokeSession(c.Request.Context(), raw); err != nil {
			logger.Warnf("session revocation failed: %v", err)
		}
	}
	c.SetCookie(h.resolver.CookieName(), "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"status": "signedOut"})
}
