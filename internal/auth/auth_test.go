package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/shoplist/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shoplist/internal/logger"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

const testCookieName = "shoplist_session"

func newTestAuth(t *testing.T) (*Auth, string) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	userID, err := theStorage.CreateUser(
		context.Background(),
		&user.User{Username: "alice", Email: "alice@example.com"},
		nil,
	)
	require.NoError(t, err)

	return New(theStorage, testCookieName, []byte("test-signing-secret")), userID
}

func sessionCookie(t *testing.T, theAuth *Auth, userID string) *http.Cookie {
	t.Helper()

	recorder := httptest.NewRecorder()
	require.NoError(t, theAuth.EstablishSession(recorder, userID))

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)

	return cookies[0]
}

func TestEstablishSessionSetsHTTPOnlyCookie(t *testing.T) {
	theAuth, userID := newTestAuth(t)

	cookie := sessionCookie(t, theAuth, userID)
	assert.Equal(t, testCookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
}

func TestRequireAPIUserPassesValidSession(t *testing.T) {
	theAuth, userID := newTestAuth(t)

	var seenUserID string
	handler := theAuth.RequireAPIUser(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		seenUserID, _ = UserIDFromContext(request.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	request.AddCookie(sessionCookie(t, theAuth, userID))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, userID, seenUserID)
}

func TestRequireAPIUserRejectsAnonymousRequest(t *testing.T) {
	theAuth, _ := newTestAuth(t)

	handlerCalled := false
	handler := theAuth.RequireAPIUser(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		handlerCalled = true
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.JSONEq(t, `{"error": "unauthorized"}`, recorder.Body.String())
	assert.False(t, handlerCalled, "anonymous requests must never reach the handler")
}

func TestRequireAPIUserRejectsForgedCookie(t *testing.T) {
	theAuth, userID := newTestAuth(t)

	forger := New(theAuth.db, testCookieName, []byte("some-other-secret"))

	handler := theAuth.RequireAPIUser(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {}))

	request := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	request.AddCookie(sessionCookie(t, forger, userID))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequireAPIUserRejectsDeletedUser(t *testing.T) {
	theAuth, _ := newTestAuth(t)

	handler := theAuth.RequireAPIUser(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {}))

	// A well-signed token whose subject no longer exists in storage.
	request := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	request.AddCookie(sessionCookie(t, theAuth, "gone-user-id"))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequireWebUserRedirectsAnonymousRequest(t *testing.T) {
	theAuth, _ := newTestAuth(t)

	handler := theAuth.RequireWebUser(http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/login", recorder.Header().Get("Location"))
}

func TestDestroySessionExpiresCookie(t *testing.T) {
	theAuth, _ := newTestAuth(t)

	recorder := httptest.NewRecorder()
	theAuth.DestroySession(recorder)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}
