package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/pkg/logger"
)

const (
	TypeUser         = "user"
	TypeServiceAdmin = "serviceAdmin"

	serviceAdminEmail = "serviceAdmin@automatter.io"
)

// Identity is the resolved caller attached to a request after authentication.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

// TokenVerifier verifies a provider ID token and returns its claims.
// Satisfied by the OIDC verifier and by the insecure test verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (map[string]interface{}, error)
}

// RevocationList records session ids invalidated by logout.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Resolver determines a caller's identity from a session cookie or a bearer
// token. It holds no server-side session state; cookie validity rests on the
// signature plus the optional revocation list.
type Resolver struct {
	secret      []byte
	cookieName  string
	sessionTTL  time.Duration
	serviceKeys map[string]string
	verifier    TokenVerifier
	revoked     RevocationList
}

type ResolverOptions struct {
	Secret      string
	CookieName  string
	SessionTTL  time.Duration
	ServiceKeys map[string]string
	Verifier    TokenVerifier
	Revoked     RevocationList
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	return &Resolver{
		secret:      []byte(opts.Secret),
		cookieName:  opts.CookieName,
		sessionTTL:  opts.SessionTTL,
		serviceKeys: opts.ServiceKeys,
		verifier:    opts.Verifier,
		revoked:     opts.Revoked,
	}
}

// CookieName returns the session cookie name the resolver reads.
func (r *Resolver) CookieName() string { return r.cookieName }

// SessionTTL returns the lifetime applied to minted session cookies.
func (r *Resolver) SessionTTL() time.Duration { return r.sessionTTL }

// Resolve returns the caller's identity or ErrUnauthenticated. Resolution
// failures never surface as anything else; a malformed cookie or token is
// simply an anonymous caller.
func (r *Resolver) Resolve(req *http.Request) (*Identity, error) {
	ctx := req.Context()

	if cookie, err := req.Cookie(r.cookieName); err == nil && cookie.Value != "" {
		if ident, _, err := r.verifySession(ctx, cookie.Value); err == nil {
			return ident, nil
		}
	}

	bearer := bearerToken(req)
	if bearer == "" {
		return nil, apperr.ErrUnauthenticated
	}

	for name, secret := range r.serviceKeys {
		if bearer == secret {
			return &Identity{
				UID:   "serviceAdmin-" + name,
				Email: serviceAdminEmail,
				Type:  TypeServiceAdmin,
			}, nil
		}
	}

	// A provider ID token in the Authorization header supports stateless
	// API calls without a cookie.
	if r.verifier != nil {
		claims, err := r.verifier.Verify(ctx, bearer)
		if err == nil {
			if ident := identityFromClaims(claims); ident != nil {
				return ident, nil
			}
		} else {
			logger.Debugf("bearer token did not verify: %v", err)
		}
	}

	return nil, apperr.ErrUnauthenticated
}

// VerifyIDToken checks a provider ID token and returns the identity it
// asserts. The login route exchanges this for a session cookie.
func (r *Resolver) VerifyIDToken(ctx context.Context, raw string) (*Identity, error) {
	if r.verifier == nil {
		return nil, apperr.Wrap(apperr.ErrUnauthenticated, "no token verifier configured")
	}
	claims, err := r.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUnauthenticated, "verify id token")
	}
	ident := identityFromClaims(claims)
	if ident == nil {
		return nil, apperr.Wrap(apperr.ErrUnauthenticated, "token has no subject")
	}
	return ident, nil
}

func bearerToken(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func identityFromClaims(claims map[string]interface{}) *Identity {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil
	}
	email, _ := claims["email"].(string)
	return &Identity{UID: sub, Email: email, Type: TypeUser}
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// MintSession creates a signed session token for the user. The returned jti
// keys the revocation list on logout.
func (r *Resolver) MintSession(uid, email string) (string, string, error) {
	jti := uuid.NewString()
	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.sessionTTL)),
		},
		Email: email,
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := jt.SignedString(r.secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func (r *Resolver) verifySession(ctx context.Context, raw string) (*Identity, *sessionClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.ErrUnauthenticated
		}
		return r.secret, nil
	})
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.ErrUnauthenticated, "parse session token")
	}
	if claims.Subject == "" {
		return nil, nil, apperr.ErrUnauthenticated
	}
	if r.revoked != nil && claims.ID != "" {
		revoked, err := r.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			logger.Warnf("revocation check failed for jti=%s: %v", claims.ID, err)
		} else if revoked {
			return nil, nil, apperr.Wrap(apperr.ErrUnauthenticated, "session revoked")
		}
	}
	return &Identity{UID: claims.Subject, Email: claims.Email, Type: TypeUser}, &claims, nil
}

// RevokeSession marks the session carried by raw as logged out. Revocation
// only needs to outlive the token, so the list entry gets the remaining TTL.
func (r *Resolver) RevokeSession(ctx context.Context, raw string) error {
	if r.revoked == nil {
		return nil
	}
	_, claims, err := r.verifySession(ctx, raw)
	if err != nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return r.revoked.Revoke(ctx, claims.ID, ttl)
}
