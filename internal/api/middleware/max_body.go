package middleware

import (
	"net/http"

	"github.com/cloo-solutions/knowctx/internal/api"
	"github.com/cloo-solutions/knowctx/internal/domain"
)

// MaxBodyBytes limits request body size. Oversized declared bodies are
// rejected up front; undeclared ones fail at decode time.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
					Error: "request body too large",
					Code:  domain.ErrCodeValidation,
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
