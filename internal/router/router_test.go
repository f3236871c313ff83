package router

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/shoplist/internal/accounts"
	"github.com/patric-chuzhbe/shoplist/internal/auth"
	"github.com/patric-chuzhbe/shoplist/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shoplist/internal/ipchecker"
	"github.com/patric-chuzhbe/shoplist/internal/logger"
	"github.com/patric-chuzhbe/shoplist/internal/mockstorage"
	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/service"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

const (
	testUserID         = "test-user-id"
	testSigningSecret  = "test-signing-secret"
	testAuthCookieName = "shoplist_session"
)

// passthroughAuth stands in for the session middleware in tests that
// exercise the API handlers without the cookie handshake.
type passthroughAuth struct {
	userID string
}

func (p *passthroughAuth) RequireAPIUser(h http.Handler) http.Handler {
	return p.inject(h)
}

func (p *passthroughAuth) RequireWebUser(h http.Handler) http.Handler {
	return p.inject(h)
}

func (p *passthroughAuth) inject(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		ctx := context.WithValue(request.Context(), auth.UserIDKey, p.userID)
		h.ServeHTTP(response, request.WithContext(ctx))
	})
}

type noopSessions struct{}

func (s *noopSessions) EstablishSession(response http.ResponseWriter, userID string) error {
	return nil
}

func (s *noopSessions) DestroySession(response http.ResponseWriter) {}

func newMemoryBackedServer(t *testing.T, trustedSubnet string) (*httptest.Server, *memorystorage.MemoryStorage) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	theAuth := auth.New(theStorage, testAuthCookieName, []byte(testSigningSecret))

	theIPChecker, err := ipchecker.New(trustedSubnet)
	require.NoError(t, err)

	router, err := New(
		service.New(theStorage),
		accounts.New(theStorage),
		theAuth,
		theAuth,
		theIPChecker,
	)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, theStorage
}

func newMockBackedServer(t *testing.T, theMock *mockstorage.StorageMock) *httptest.Server {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	theIPChecker, err := ipchecker.New("")
	require.NoError(t, err)

	router, err := New(
		service.New(theMock),
		accounts.New(theMock),
		&noopSessions{},
		&passthroughAuth{userID: testUserID},
		theIPChecker,
	)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server
}

// newAPIClient builds a resty client that keeps responses uncompressed so
// that error bodies can be asserted on directly.
func newAPIClient(serverURL string) *resty.Client {
	return resty.New().
		SetBaseURL(serverURL).
		SetHeader("Accept-Encoding", "identity")
}

func createTestUser(t *testing.T, theStorage *memorystorage.MemoryStorage) *http.Cookie {
	t.Helper()

	userID, err := theStorage.CreateUser(
		context.Background(),
		&user.User{ID: testUserID, Username: "alice", Email: "alice@example.com"},
		nil,
	)
	require.NoError(t, err)

	theAuth := auth.New(theStorage, testAuthCookieName, []byte(testSigningSecret))
	recorder := httptest.NewRecorder()
	require.NoError(t, theAuth.EstablishSession(recorder, userID))

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)

	return cookies[0]
}

func TestApicoursesLifecycle(t *testing.T) {
	server, theStorage := newMemoryBackedServer(t, "")
	sessionCookie := createTestUser(t, theStorage)
	client := newAPIClient(server.URL).SetCookie(sessionCookie)

	resp, err := client.R().Get("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `[]`, string(resp.Body()))

	resp, err = client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"nom": "Pommes", "quantite": 5}`).
		Post("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode(), "a missing key should be rejected")
	assert.JSONEq(t, `{"error": "Invalid data"}`, string(resp.Body()))

	resp, err = client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{not json`).
		Post("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.JSONEq(t, `{"error": "Invalid data"}`, string(resp.Body()))

	resp, err = client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"nom": "Pommes", "quantite": 5, "categorie": "Fruits"}`).
		Post("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.JSONEq(t, `{"success": true}`, string(resp.Body()))

	var items []models.Item
	resp, err = client.R().Get("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	require.NoError(t, json.Unmarshal(resp.Body(), &items))
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, "Pommes", items[0].Name)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "Fruits", items[0].Category)
	assert.False(t, items[0].Checked)

	itemID := items[0].ID

	resp, err = client.R().Post(fmt.Sprintf("/api/courses/%s/check", itemID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"success": true}`, string(resp.Body()))

	resp, err = client.R().Get("/api/courses")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp.Body(), &items))
	require.Len(t, items, 1)
	assert.True(t, items[0].Checked)

	resp, err = client.R().Post(fmt.Sprintf("/api/courses/%s/check", itemID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	resp, err = client.R().Get("/api/courses")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(resp.Body(), &items))
	require.Len(t, items, 1)
	assert.False(t, items[0].Checked, "a second toggle should restore the original state")

	resp, err = client.R().Post("/api/courses/undefined/check")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.JSONEq(t, `{"error": "Invalid ID"}`, string(resp.Body()))

	resp, err = client.R().Delete("/api/courses/no-such-id")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.JSONEq(t, `{"error": "Invalid ID"}`, string(resp.Body()))

	resp, err = client.R().Delete(fmt.Sprintf("/api/courses/%s", itemID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"success": true}`, string(resp.Body()))

	resp, err = client.R().Get("/api/courses")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(resp.Body()))

	for _, name := range []string{"Pain", "Lait"} {
		resp, err = client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(fmt.Sprintf(`{"nom": %q, "quantite": 1, "categorie": "Divers"}`, name)).
			Post("/api/courses")
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode())
	}

	resp, err = client.R().Post("/api/courses/clear")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"success": true}`, string(resp.Body()))

	resp, err = client.R().Get("/api/courses")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(resp.Body()))
}

func TestApicoursesRequiresSession(t *testing.T) {
	server, _ := newMemoryBackedServer(t, "")
	client := newAPIClient(server.URL)

	resp, err := client.R().Get("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	assert.JSONEq(t, `{"error": "unauthorized"}`, string(resp.Body()))

	resp, err = client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"nom": "Pommes", "quantite": 5, "categorie": "Fruits"}`).
		Post("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}

func TestRegistrationAndLoginFlow(t *testing.T) {
	server, _ := newMemoryBackedServer(t, "")
	client := newAPIClient(server.URL)

	resp, err := client.R().
		SetFormData(map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "s3cret",
		}).
		Post("/register")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "Compte créé. Vous pouvez vous connecter.")

	resp, err = client.R().
		SetFormData(map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "s3cret",
		}).
		Post("/register")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body()), "Ce nom d'utilisateur ou cet email est déjà utilisé.")

	resp, err = client.R().
		SetFormData(map[string]string{
			"username": "bob",
			"email":    "",
			"password": "s3cret",
		}).
		Post("/register")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body()), "Tous les champs sont obligatoires.")

	resp, err = client.R().
		SetFormData(map[string]string{
			"username": "alice",
			"password": "wrong",
		}).
		Post("/login")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body()), "Nom d'utilisateur ou mot de passe incorrect.")

	resp, err = client.R().
		SetFormData(map[string]string{
			"username": "alice",
			"password": "s3cret",
		}).
		Post("/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "Ma liste de courses")
	assert.Contains(t, string(resp.Body()), "La liste est vide.")

	resp, err = client.R().Get("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode(), "the session cookie should open the API")

	resp, err = client.R().Get("/logout")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "Connexion")

	resp, err = client.R().Get("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode(), "logout should drop the session")
}

func TestIndexRedirectsAnonymousVisitor(t *testing.T) {
	server, _ := newMemoryBackedServer(t, "")
	client := newAPIClient(server.URL)

	resp, err := client.R().Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "Connexion", "an anonymous visitor should land on the login page")
}

func TestGetPing(t *testing.T) {
	server, _ := newMemoryBackedServer(t, "")
	client := newAPIClient(server.URL)

	resp, err := client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestGetApiinternalstats(t *testing.T) {
	server, theStorage := newMemoryBackedServer(t, "192.168.1.0/24")
	createTestUser(t, theStorage)
	client := newAPIClient(server.URL)

	resp, err := client.R().
		SetHeader("X-Real-IP", "192.168.1.10").
		Get("/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"users": 1, "items": 0}`, string(resp.Body()))

	resp, err = client.R().
		SetHeader("X-Real-IP", "10.0.0.1").
		Get("/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestGetApiinternalstatsDisabledWithoutSubnet(t *testing.T) {
	server, _ := newMemoryBackedServer(t, "")
	client := newAPIClient(server.URL)

	resp, err := client.R().
		SetHeader("X-Real-IP", "192.168.1.10").
		Get("/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestStorageFailuresYield500(t *testing.T) {
	boom := errors.New("storage is down")

	testCases := []struct {
		name    string
		arrange func(theMock *mockstorage.StorageMock)
		act     func(client *resty.Client) (*resty.Response, error)
	}{
		{
			name: "list",
			arrange: func(theMock *mockstorage.StorageMock) {
				theMock.On("GetItems", mock.Anything, testUserID).Return(nil, boom)
			},
			act: func(client *resty.Client) (*resty.Response, error) {
				return client.R().Get("/api/courses")
			},
		},
		{
			name: "add",
			arrange: func(theMock *mockstorage.StorageMock) {
				theMock.On("InsertItem", mock.Anything, testUserID, mock.Anything).Return(boom)
			},
			act: func(client *resty.Client) (*resty.Response, error) {
				return client.R().
					SetHeader("Content-Type", "application/json").
					SetBody(`{"nom": "Pommes", "quantite": 5, "categorie": "Fruits"}`).
					Post("/api/courses")
			},
		},
		{
			name: "toggle",
			arrange: func(theMock *mockstorage.StorageMock) {
				theMock.On("ToggleItemChecked", mock.Anything, testUserID, "item-1").Return(false, boom)
			},
			act: func(client *resty.Client) (*resty.Response, error) {
				return client.R().Post("/api/courses/item-1/check")
			},
		},
		{
			name: "delete",
			arrange: func(theMock *mockstorage.StorageMock) {
				theMock.On("DeleteItem", mock.Anything, testUserID, "item-1").Return(false, boom)
			},
			act: func(client *resty.Client) (*resty.Response, error) {
				return client.R().Delete("/api/courses/item-1")
			},
		},
		{
			name: "clear",
			arrange: func(theMock *mockstorage.StorageMock) {
				theMock.On("ClearItems", mock.Anything, testUserID).Return(boom)
			},
			act: func(client *resty.Client) (*resty.Response, error) {
				return client.R().Post("/api/courses/clear")
			},
		},
		{
			name: "ping",
			arrange: func(theMock *mockstorage.StorageMock) {
				theMock.On("Ping", mock.Anything).Return(boom)
			},
			act: func(client *resty.Client) (*resty.Response, error) {
				return client.R().Get("/ping")
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			theMock := &mockstorage.StorageMock{}
			testCase.arrange(theMock)

			server := newMockBackedServer(t, theMock)
			client := newAPIClient(server.URL)

			resp, err := testCase.act(client)
			require.NoError(t, err)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
			theMock.AssertExpectations(t)
		})
	}
}

func gzipBytes(data string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(data)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func TestPostApicoursesForGzip(t *testing.T) {
	server, theStorage := newMemoryBackedServer(t, "")
	sessionCookie := createTestUser(t, theStorage)

	body, err := gzipBytes(`{"nom": "Pommes", "quantite": 5, "categorie": "Fruits"}`)
	require.NoError(t, err)

	resp, err := resty.New().
		SetBaseURL(server.URL).
		SetCookie(sessionCookie).
		R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetHeader("Accept-Encoding", "gzip").
		SetBody(body).
		Post("/api/courses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.JSONEq(t, `{"success": true}`, string(resp.Body()))
}
