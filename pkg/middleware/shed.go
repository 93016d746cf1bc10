package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/resilience"
)

// LoadShed rejects requests beyond maxInflight with 503 so the service sheds
// load instead of queueing into a timeout.
func LoadShed(name string, maxInflight int64) func(http.Handler) http.Handler {
	shedder := resilience.NewShedder(name, maxInflight)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := shedder.Do(r.Context(), func(_ context.Context) error {
				next.ServeHTTP(w, r)
				return nil
			})
			if err != nil && errors.Is(err, apperrors.ErrOverloaded) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "OVERLOADED",
					"message": "service is shedding load",
				})
			}
		})
	}
}
