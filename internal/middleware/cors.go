package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the web client to call the API from its own origin.
func CORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
