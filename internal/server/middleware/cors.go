package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS allows the configured frontend origin to call the HTTP routes.
// "*" allows any origin.
func NewCORS(allowedOrigin string) Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: false,
	})
}
