package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// StatusCode returns 403 for ErrForbidden and 401 for every other error.
func StatusCode(err error) int {
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// RequireRole returns middleware admitting requests whose credentials a
// accepts and whose identity holds role. The identity is attached to the
// request context.
func RequireRole(a Authenticator, role string, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), StatusCode(err))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r.Context(), r.Header)
			if err == nil && id.IsExpired() {
				err = ErrTokenExpired
			}
			if err != nil {
				if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrInvalidCredentials) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="regrid"`)
				}
				onError(w, r, err)
				return
			}
			if !id.HasRole(role) {
				onError(w, r, fmt.Errorf("%w: %s lacks role %q", ErrForbidden, id.Principal, role))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
