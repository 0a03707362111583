package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/surveycash/surveycash-backend/api/responses"
)

// CORS applies the web client's allowed-origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", responses.RequestIDHeader},
		ExposedHeaders:   []string{responses.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
