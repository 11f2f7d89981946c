package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS lets the dashboard origins call the engine API from the browser. The
// request ID header is accepted and exposed so a dashboard can correlate its
// calls with the server's request log.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	return c.Handler
}
