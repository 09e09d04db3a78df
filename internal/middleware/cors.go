package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// corsMethods are the methods the API routes answer to. The feed's
// websocket upgrade is a plain GET and is never preflighted.
var corsMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// NewCORSHandler lets the web app at allowedOrigins call the API with a
// bearer token. Each origin is scheme + host without a trailing slash.
// Preflights are cached for ten minutes, and Content-Disposition is exposed
// so the app can name CSV exports.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: corsMethods,
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         600,
	}).Handler
}
