package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathlog/models"
)

func authBackend(t *testing.T, hits *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/login", "/register":
			json.NewEncoder(w).Encode(models.AuthResponse{
				User:  models.User{ID: 1, Name: "Jo", Email: "jo@example.com"},
				Token: "backend-bearer",
			})
		case "/logout", "/reset-password":
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected backend call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestHandleLogin_Success(t *testing.T) {
	var hits int32
	e := newEnv(t, authBackend(t, &hits))

	resp := e.postForm(t, "/login", url.Values{
		"email":    {"jo@example.com"},
		"password": {"secret"},
	})

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/jobs", resp.Header.Get("Location"))

	// The backend login is now the session.
	sess := e.sessions.Get(testSessionID)
	require.NotNil(t, sess)
	assert.True(t, sess.IsAuthenticated())
	assert.Equal(t, "backend-bearer", sess.Token)

	// And the signed local token rides a cookie of its own.
	var tokenCookie string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == e.cfg.Session.CookieName+"_token" {
			tokenCookie = cookie.Value
		}
	}
	assert.NotEmpty(t, tokenCookie)
}

func TestHandleLogin_MissingFields(t *testing.T) {
	var hits int32
	e := newEnv(t, authBackend(t, &hits))

	resp := e.postForm(t, "/login", url.Values{"email": {"jo@example.com"}})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.False(t, e.sessions.IsAuthenticated(testSessionID))
}

func TestHandleLogin_BackendRejects(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Invalid credentials"}`))
	})

	resp := e.postForm(t, "/login", url.Values{
		"email":    {"jo@example.com"},
		"password": {"wrong"},
	})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, e.sessions.IsAuthenticated(testSessionID))
}

func TestHandleRegister_MismatchNeverReachesBackend(t *testing.T) {
	var hits int32
	e := newEnv(t, authBackend(t, &hits))

	resp := e.postForm(t, "/register", url.Values{
		"name":                  {"Jo"},
		"email":                 {"jo@example.com"},
		"password":              {"secret"},
		"password_confirmation": {"different"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	// The mismatch is caught locally; no request leaves.
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestHandleRegister_Success(t *testing.T) {
	var hits int32
	e := newEnv(t, authBackend(t, &hits))

	resp := e.postForm(t, "/register", url.Values{
		"name":                  {"Jo"},
		"email":                 {"jo@example.com"},
		"password":              {"secret"},
		"password_confirmation": {"secret"},
	})

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/jobs", resp.Header.Get("Location"))
	assert.True(t, e.sessions.IsAuthenticated(testSessionID))
}

func TestHandleResetPassword_MismatchNeverReachesBackend(t *testing.T) {
	var hits int32
	e := newEnv(t, authBackend(t, &hits))

	resp := e.postForm(t, "/reset-password", url.Values{
		"email":                 {"jo@example.com"},
		"token":                 {"reset-token"},
		"password":              {"secret"},
		"password_confirmation": {"different"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestHandleResetPassword_Success(t *testing.T) {
	var hits int32
	e := newEnv(t, authBackend(t, &hits))

	resp := e.postForm(t, "/reset-password", url.Values{
		"email":                 {"jo@example.com"},
		"token":                 {"reset-token"},
		"password":              {"secret"},
		"password_confirmation": {"secret"},
	})

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, "toast_password_reset", e.toasts.Current(testSessionID).Message)
}

func TestHandleLogout_ClearsSessionAndCache(t *testing.T) {
	var hits int32
	e := newEnv(t, authBackend(t, &hits))

	require.NoError(t, e.sessions.SetAuth(testSessionID, models.User{ID: 1, Name: "Jo"}, "backend-bearer"))

	resp := e.get(t, "/logout")

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.False(t, e.sessions.IsAuthenticated(testSessionID))

	// The token cookie is expired on the way out.
	for _, cookie := range resp.Cookies() {
		if cookie.Name == e.cfg.Session.CookieName+"_token" {
			assert.Empty(t, cookie.Value)
		}
	}
}
