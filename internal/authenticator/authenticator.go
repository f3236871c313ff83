package authenticator

import "net/http"

type Authenticator interface {
	RequireAPIUser(h http.Handler) http.Handler
	RequireWebUser(h http.Handler) http.Handler
}
