package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/equinoxcap/investor-portal-backend/internal/api/response"
	"github.com/equinoxcap/investor-portal-backend/internal/validation"
)

// ValidateIDParam returns a middleware that rejects requests whose named
// URL parameter is not a positive integer, before the handler runs.
func ValidateIDParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := validation.ParseID(chi.URLParam(r, param)); err != nil {
				response.RespondError(w, http.StatusBadRequest, "invalid "+param, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateUUIDParam returns a middleware that rejects requests whose named
// URL parameter is not a valid UUID.
func ValidateUUIDParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := validation.ValidateUUID(chi.URLParam(r, param)); err != nil {
				response.RespondError(w, http.StatusBadRequest, "invalid "+param, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
