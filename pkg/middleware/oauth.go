package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shortlink/pkg/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
)

type OAuthConfig struct {
	IssuerURL string
	Audience  string
}

type AuthClaims struct {
	Sub    string   `json:"sub"`
	Email  string   `json:"email"`
	Scope  string   `json:"scope"`
	Groups []string `json:"groups,omitempty"`
}

// TokenVerifier checks a raw bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*AuthClaims, error)
}

// OIDCVerifier verifies ID tokens against an OpenID Connect provider.
// The audience check is done by go-oidc through ClientID.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, config OAuthConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.Audience}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*AuthClaims, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	var claims AuthClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	if claims.Sub == "" {
		claims.Sub = token.Subject
	}
	return &claims, nil
}

type OAuthMiddleware struct {
	verifier TokenVerifier
	logger   *logging.Logger
}

func NewOAuthMiddleware(verifier TokenVerifier, logger *logging.Logger) *OAuthMiddleware {
	return &OAuthMiddleware{verifier: verifier, logger: logger}
}

var (
	errMissingHeader = errors.New("missing authorization header")
	errHeaderFormat  = errors.New("invalid authorization header format")
)

// Authenticate requires a valid bearer token carrying every required scope.
func (m *OAuthMiddleware) Authenticate(requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.claimsFromRequest(r)
			if err != nil {
				m.reject(w, r, err)
				return
			}
			if !checkScopes(claims.Scope, requiredScopes) {
				m.logger.LogAuthEvent(r.Context(), "insufficient_scope", claims.Sub, false)
				http.Error(w, "insufficient scope", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// Optional lets anonymous requests through but still rejects a bearer token
// that is present and invalid.
func (m *OAuthMiddleware) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := m.claimsFromRequest(r)
			if err != nil {
				m.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func (m *OAuthMiddleware) claimsFromRequest(r *http.Request) (*AuthClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingHeader
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return nil, errHeaderFormat
	}
	claims, err := m.verifier.Verify(r.Context(), tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Sub == "" {
		return nil, errors.New("token has no subject")
	}
	m.logger.LogAuthEvent(r.Context(), "token_verified", claims.Sub, true)
	return claims, nil
}

func (m *OAuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Warn(r.Context(), "authentication failed", "error", err)
	switch {
	case errors.Is(err, errMissingHeader), errors.Is(err, errHeaderFormat):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}
}

func checkScopes(tokenScopes string, requiredScopes []string) bool {
	scopeMap := make(map[string]bool)
	for _, s := range strings.Fields(tokenScopes) {
		scopeMap[s] = true
	}
	for _, required := range requiredScopes {
		if !scopeMap[required] {
			return false
		}
	}
	return true
}

type contextKey int

const (
	subKey contextKey = iota
	ownerIDKey
)

func withClaims(ctx context.Context, claims *AuthClaims) context.Context {
	ctx = context.WithValue(ctx, subKey, claims.Sub)
	return ContextWithOwnerID(ctx, OwnerIDForSubject(claims.Sub))
}

// OwnerIDForSubject maps a token subject to the owner id stored on links.
// UUID subjects are used as is; anything else gets a stable name-based UUID.
func OwnerIDForSubject(sub string) uuid.UUID {
	if id, err := uuid.Parse(sub); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sub:"+sub))
}

func ContextWithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// GetSubFromContext returns the token subject, or "" for anonymous requests.
func GetSubFromContext(ctx context.Context) string {
	if sub, ok := ctx.Value(subKey).(string); ok {
		return sub
	}
	return ""
}

// GetOwnerIDFromContext returns uuid.Nil for anonymous requests.
func GetOwnerIDFromContext(ctx context.Context) uuid.UUID {
	if ownerID, ok := ctx.Value(ownerIDKey).(uuid.UUID); ok {
		return ownerID
	}
	return uuid.Nil
}
