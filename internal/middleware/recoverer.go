// AngelaMos | 2026
// recoverer.go

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/angelamos/lumeo/internal/core"
)

// Recoverer converts handler panics into 500 responses. The panic is
// logged with its stack and recorded on the active trace span.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison per net/http docs
				panic(rec)
			}

			err := fmt.Errorf("panic: %v", rec)
			core.SetSpanError(r.Context(), err)
			slog.Error("handler panic",
				"error", err,
				"request_id", GetRequestID(r.Context()),
				"stack", string(debug.Stack()),
			)

			core.InternalServerError(w, err)
		}()

		next.ServeHTTP(w, r)
	})
}
