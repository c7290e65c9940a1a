package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthDisabledByDefault(t *testing.T) {
	deps := newTestDeps(t)
	rec := do(t, NewRouter(deps), http.MethodGet, "/tasks/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	deps := newTestDeps(t)
	deps.AuthEnabled = true
	seedUser(t, deps, "alice")
	router := NewRouter(deps)

	rec := do(t, router, http.MethodGet, "/tasks/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/tasks/", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/tasks/", nil, "Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/auth/login/", `{"userId": "alice", "password": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/auth/login/", `{"userId": "ghost", "password": "secret"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/auth/login/", `{"userId": "alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "password")

	rec = do(t, router, http.MethodPost, "/auth/login/", `{"userId": "alice", "password": "secret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[struct {
		Token string            `json:"token"`
		User  map[string]string `json:"user"`
	}](t, rec)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "alice", login.User["userId"])
	assert.NotContains(t, login.User, "password")

	bearer := "Bearer " + login.Token

	rec = do(t, router, http.MethodGet, "/tasks/", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/auth/verify/", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId": "alice", "status": "valid"}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/auth/verify/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = do(t, router, http.MethodGet, "/healthz", nil, requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
