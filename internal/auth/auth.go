// Package auth provides the session layer: a signed JWT stored in an
// httpOnly cookie, plus middleware gating the API and the HTML pages.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shoplist/internal/logger"
	"github.com/patric-chuzhbe/shoplist/internal/models"
	"github.com/patric-chuzhbe/shoplist/internal/user"
)

type userKeeper interface {
	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error)
}

const sessionTTL = 24 * time.Hour

// Auth issues and verifies session cookies. The signing secret lives in
// memory only; when it is generated at startup rather than configured,
// every session dies with the process.
type Auth struct {
	// db is the interface to the user data storage.
	db userKeeper

	// authCookieName is the name of the cookie used to store the JWT.
	authCookieName string

	// authCookieSigningSecretKey is the key used to sign JWTs.
	authCookieSigningSecretKey []byte
}

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds a user-specific identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// New creates a new Auth handler with the given user data access layer,
// cookie name, and JWT signing secret.
func New(
	db userKeeper,
	authCookieName string,
	authCookieSigningSecretKey []byte,
) *Auth {
	return &Auth{
		db:                         db,
		authCookieName:             authCookieName,
		authCookieSigningSecretKey: authCookieSigningSecretKey,
	}
}

// EstablishSession signs a JWT for the given user and sets it as an
// httpOnly cookie on the response.
func (a *Auth) EstablishSession(response http.ResponseWriter, userID string) error {
	JWTString, err := a.buildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
		},
		UserID: userID,
	})
	if err != nil {
		return err
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.authCookieName,
			Value:    JWTString,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		},
	)

	return nil
}

// DestroySession expires the session cookie.
func (a *Auth) DestroySession(response http.ResponseWriter) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.authCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		},
	)
}

// RequireAPIUser is an HTTP middleware for the JSON API. Requests without
// a valid session are rejected with 401 and never proceed as anonymous.
func (a *Auth) RequireAPIUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		usr, ok := a.resolveUser(request)
		if !ok {
			response.Header().Set("Content-Type", "application/json")
			response.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(response).Encode(models.ErrorResponse{Error: "unauthorized"})

			return
		}

		h.ServeHTTP(response, a.requestWithUser(request, usr))
	}

	return http.HandlerFunc(middleware)
}

// RequireWebUser is an HTTP middleware for the HTML pages. Requests
// without a valid session are redirected to the login page.
func (a *Auth) RequireWebUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		usr, ok := a.resolveUser(request)
		if !ok {
			http.Redirect(response, request, "/login", http.StatusFound)

			return
		}

		h.ServeHTTP(response, a.requestWithUser(request, usr))
	}

	return http.HandlerFunc(middleware)
}

// UserIDFromContext extracts the authenticated user's ID placed into the
// request context by the middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)

	return userID, ok && userID != ""
}

func (a *Auth) requestWithUser(request *http.Request, usr *user.User) *http.Request {
	ctx := context.WithValue(request.Context(), UserIDKey, usr.ID)

	return request.WithContext(ctx)
}

// resolveUser parses the session cookie and checks the user still exists
// in storage. Any parse or lookup failure yields an anonymous request.
func (a *Auth) resolveUser(request *http.Request) (*user.User, bool) {
	userID := a.getUserIDFromCookie(request)
	if userID == "" {
		return nil, false
	}

	usr, err := a.db.GetUserByID(request.Context(), userID, nil)
	if err != nil {
		logger.Log.Debugln("Error calling the `a.db.GetUserByID()`: ", zap.Error(err))

		return nil, false
	}
	if usr.ID == "" {
		return nil, false
	}

	return usr, true
}

func (a *Auth) getUserIDFromCookie(request *http.Request) string {
	cookie, err := request.Cookie(a.authCookieName)
	if err != nil {
		return ""
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.authCookieSigningSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ""
	}

	return claims.UserID
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.authCookieSigningSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
