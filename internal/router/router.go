// Package router maps HTTP verbs and paths to the list service and the
// account manager: a JSON API under /api plus a small set of
// server-rendered pages for registration, login, and the list itself.
package router

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shoplist/internal/accounts"
	"github.com/patric-chuzhbe/shoplist/internal/auth"
	"github.com/patric-chuzhbe/shoplist/internal/authenticator"
	"github.com/patric-chuzhbe/shoplist/internal/gzippedhttp"
	"github.com/patric-chuzhbe/shoplist/internal/ipchecker"
	"github.com/patric-chuzhbe/shoplist/internal/logger"
	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/service"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

const flashCookieName = "shoplist_flash"

type listService interface {
	ListItems(ctx context.Context, userID string) ([]models.Item, error)
	AddItem(ctx context.Context, userID string, request *models.AddItemRequest) (models.Item, error)
	ToggleChecked(ctx context.Context, userID, itemID string) error
	DeleteItem(ctx context.Context, userID, itemID string) error
	ClearAll(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
}

type accountManager interface {
	Register(ctx context.Context, username, email, password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (*user.User, error)
}

type sessionManager interface {
	EstablishSession(response http.ResponseWriter, userID string) error
	DestroySession(response http.ResponseWriter)
}

// Router holds the handler methods for every route.
type Router struct {
	service   listService
	accounts  accountManager
	sessions  sessionManager
	ipChecker *ipchecker.IPChecker
	templates *template.Template
}

// New assembles the chi mux: logging on everything, gzip plus session
// checks on the API, the trusted-subnet guard on the internal stats
// endpoint, and the page routes.
func New(
	theService listService,
	theAccounts accountManager,
	theSessions sessionManager,
	theAuth authenticator.Authenticator,
	theIPChecker *ipchecker.IPChecker,
) (*chi.Mux, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}

	myRouter := &Router{
		service:   theService,
		accounts:  theAccounts,
		sessions:  theSessions,
		ipChecker: theIPChecker,
		templates: templates,
	}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)

	router.Get(`/ping`, myRouter.GetPing)

	router.Group(func(api chi.Router) {
		api.Use(
			gzippedhttp.UngzipRequest,
			gzippedhttp.GzipResponse,
			theAuth.RequireAPIUser,
		)
		api.Get(`/api/courses`, myRouter.GetApicourses)
		api.Post(`/api/courses`, myRouter.PostApicourses)
		api.Post(`/api/courses/clear`, myRouter.PostApicoursesclear)
		api.Post(`/api/courses/{courseID}/check`, myRouter.PostApicoursescheck)
		api.Delete(`/api/courses/{courseID}`, myRouter.DeleteApicourses)
	})

	router.With(gzippedhttp.GzipResponse).Get(`/api/internal/stats`, myRouter.GetApiinternalstats)

	router.With(theAuth.RequireWebUser).Get(`/`, myRouter.GetIndex)
	router.Get(`/register`, myRouter.GetRegister)
	router.Post(`/register`, myRouter.PostRegister)
	router.Get(`/login`, myRouter.GetLogin)
	router.Post(`/login`, myRouter.PostLogin)
	router.With(theAuth.RequireWebUser).Get(`/logout`, myRouter.GetLogout)

	return router, nil
}

// GetPing reports the health of the storage layer.
func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.service.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `r.service.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetApicourses returns every item within the current user's scope.
func (r *Router) GetApicourses(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())

	items, err := r.service.ListItems(request.Context(), userID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.ListItems()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(response, http.StatusOK, items)
}

// PostApicourses adds one item. A body missing any of the "nom",
// "quantite", "categorie" keys is rejected with 400.
func (r *Router) PostApicourses(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())

	itemRequest := &models.AddItemRequest{}
	if err := json.NewDecoder(request.Body).Decode(itemRequest); err != nil {
		writeJSON(response, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid data"})

		return
	}

	_, err := r.service.AddItem(request.Context(), userID, itemRequest)
	if errors.Is(err, service.ErrValidation) {
		writeJSON(response, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid data"})

		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.AddItem()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(response, http.StatusCreated, models.SuccessResponse{Success: true})
}

// PostApicoursescheck toggles the checked state of one item.
func (r *Router) PostApicoursescheck(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())
	courseID := chi.URLParam(request, "courseID")

	err := r.service.ToggleChecked(request.Context(), userID, courseID)
	if errors.Is(err, service.ErrInvalidID) {
		writeJSON(response, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid ID"})

		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.ToggleChecked()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

// DeleteApicourses removes one item.
func (r *Router) DeleteApicourses(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())
	courseID := chi.URLParam(request, "courseID")

	err := r.service.DeleteItem(request.Context(), userID, courseID)
	if errors.Is(err, service.ErrInvalidID) {
		writeJSON(response, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid ID"})

		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.DeleteItem()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

// PostApicoursesclear removes every item within the current user's scope.
func (r *Router) PostApicoursesclear(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())

	if err := r.service.ClearAll(request.Context(), userID); err != nil {
		logger.Log.Debugln("Error calling the `r.service.ClearAll()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

// GetApiinternalstats returns item and user totals. It is only reachable
// from the configured trusted subnet and disabled when none is set.
func (r *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	if r.ipChecker.IsTrustedSubnetEmpty() {
		response.WriteHeader(http.StatusForbidden)

		return
	}

	clientIP, err := r.ipChecker.GetClientIP(request)
	if err != nil || !r.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)

		return
	}

	stats, err := r.service.GetInternalStats(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.GetInternalStats()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(response, http.StatusOK, stats)
}

// GetIndex renders the shopping list page.
func (r *Router) GetIndex(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())

	items, err := r.service.ListItems(request.Context(), userID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.ListItems()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	r.renderPage(response, "index.gohtml", map[string]interface{}{
		"Items": items,
	})
}

// GetRegister renders the registration form.
func (r *Router) GetRegister(response http.ResponseWriter, request *http.Request) {
	r.renderPage(response, "register.gohtml", map[string]interface{}{})
}

// PostRegister creates an account. Validation and conflict errors
// re-render the form with a notice; success redirects to the login page
// with a flash message.
func (r *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		response.WriteHeader(http.StatusBadRequest)

		return
	}

	_, err := r.accounts.Register(
		request.Context(),
		request.PostFormValue("username"),
		request.PostFormValue("email"),
		request.PostFormValue("password"),
	)
	if errors.Is(err, accounts.ErrValidation) {
		r.renderPage(response, "register.gohtml", map[string]interface{}{
			"Error": "Tous les champs sont obligatoires.",
		})

		return
	}
	if errors.Is(err, models.ErrUserConflict) {
		r.renderPage(response, "register.gohtml", map[string]interface{}{
			"Error": "Ce nom d'utilisateur ou cet email est déjà utilisé.",
		})

		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.accounts.Register()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	setFlash(response, "Compte créé. Vous pouvez vous connecter.")
	http.Redirect(response, request, "/login", http.StatusFound)
}

// GetLogin renders the login form, consuming any pending flash message.
func (r *Router) GetLogin(response http.ResponseWriter, request *http.Request) {
	r.renderPage(response, "login.gohtml", map[string]interface{}{
		"Flash": consumeFlash(response, request),
	})
}

// PostLogin authenticates the user and establishes a session. Every
// failure renders the same generic message.
func (r *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		response.WriteHeader(http.StatusBadRequest)

		return
	}

	usr, err := r.accounts.Authenticate(
		request.Context(),
		request.PostFormValue("username"),
		request.PostFormValue("password"),
	)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		r.renderPage(response, "login.gohtml", map[string]interface{}{
			"Error": "Nom d'utilisateur ou mot de passe incorrect.",
		})

		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.accounts.Authenticate()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	if err := r.sessions.EstablishSession(response, usr.ID); err != nil {
		logger.Log.Debugln("Error calling the `r.sessions.EstablishSession()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)

		return
	}

	http.Redirect(response, request, "/", http.StatusFound)
}

// GetLogout destroys the session and returns to the login page.
func (r *Router) GetLogout(response http.ResponseWriter, request *http.Request) {
	r.sessions.DestroySession(response)
	http.Redirect(response, request, "/login", http.StatusFound)
}

func (r *Router) renderPage(response http.ResponseWriter, name string, data map[string]interface{}) {
	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := r.templates.ExecuteTemplate(response, name, data); err != nil {
		logger.Log.Debugln("Error calling the `r.templates.ExecuteTemplate()`: ", zap.Error(err))
	}
}

func writeJSON(response http.ResponseWriter, statusCode int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}

func setFlash(response http.ResponseWriter, message string) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:  flashCookieName,
			Value: url.QueryEscape(message),
			Path:  "/",
		},
	)
}

// consumeFlash reads the flash cookie and expires it in the same response.
func consumeFlash(response http.ResponseWriter, request *http.Request) string {
	cookie, err := request.Cookie(flashCookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:   flashCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		},
	)

	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}

	return message
}
