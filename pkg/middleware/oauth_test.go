package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shortlink/pkg/logging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct {
	tokens map[string]*AuthClaims
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (*AuthClaims, error) {
	if c, ok := f.tokens[raw]; ok {
		return c, nil
	}
	return nil, errors.New("oidc: malformed jwt")
}

var ownerUUID = uuid.MustParse("6f1c3f8e-2a4b-4c7d-9e0f-1a2b3c4d5e6f")

func newTestMiddleware() *OAuthMiddleware {
	return NewOAuthMiddleware(&fakeVerifier{tokens: map[string]*AuthClaims{
		"good":     {Sub: ownerUUID.String(), Email: "owner@example.com", Scope: "links:read links:write"},
		"readonly": {Sub: ownerUUID.String(), Scope: "links:read"},
		"external": {Sub: "auth0|12345", Scope: "links:write"},
	}}, logging.Discard())
}

func serve(mw func(http.Handler) http.Handler, header string) (*httptest.ResponseRecorder, uuid.UUID) {
	var seen uuid.UUID
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetOwnerIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, seen
}

func TestOAuthMiddleware_Authenticate(t *testing.T) {
	m := newTestMiddleware()

	tests := []struct {
		name       string
		header     string
		scopes     []string
		wantStatus int
		wantOwner  uuid.UUID
	}{
		{"valid token", "Bearer good", []string{"links:write"}, http.StatusOK, ownerUUID},
		{"missing header", "", nil, http.StatusUnauthorized, uuid.Nil},
		{"invalid header format", "InvalidFormat token", nil, http.StatusUnauthorized, uuid.Nil},
		{"invalid token", "Bearer invalid-token", nil, http.StatusUnauthorized, uuid.Nil},
		{"insufficient scope", "Bearer readonly", []string{"links:write"}, http.StatusForbidden, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, owner := serve(m.Authenticate(tt.scopes...), tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOwner, owner)
		})
	}
}

func TestOAuthMiddleware_Optional(t *testing.T) {
	m := newTestMiddleware()

	w, owner := serve(m.Optional(), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uuid.Nil, owner, "anonymous request has no owner")

	w, owner = serve(m.Optional(), "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ownerUUID, owner)

	w, _ = serve(m.Optional(), "Bearer invalid-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOwnerIDForSubject(t *testing.T) {
	assert.Equal(t, ownerUUID, OwnerIDForSubject(ownerUUID.String()))

	external := OwnerIDForSubject("auth0|12345")
	assert.NotEqual(t, uuid.Nil, external)
	assert.Equal(t, external, OwnerIDForSubject("auth0|12345"))
	assert.NotEqual(t, external, OwnerIDForSubject("auth0|12346"))

	_, owner := serve(newTestMiddleware().Authenticate(), "Bearer external")
	assert.Equal(t, external, owner)
}

func TestContextHelpers(t *testing.T) {
	ctx := withClaims(context.Background(), &AuthClaims{Sub: "abc", Email: "a@example.com", Scope: "links:read"})
	assert.Equal(t, "abc", GetSubFromContext(ctx))
	assert.Equal(t, OwnerIDForSubject("abc"), GetOwnerIDFromContext(ctx))
	assert.Empty(t, GetSubFromContext(context.Background()))
	assert.Equal(t, uuid.Nil, GetOwnerIDFromContext(context.Background()))
}
