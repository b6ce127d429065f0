package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/rs/zerolog/log"
)

// SetTimeout bounds each request's context by timeout. Handlers that honour the context stop
// early; if nothing was written when the deadline passes, a 408 is sent. A zero timeout
// disables the bound.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := httpx.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if ctx.Err() == context.DeadlineExceeded && !rw.Written() {
				log.Ctx(ctx).Error().Msg("request timed out")
				httpx.ErrRequestTimeout().Send(rw)
			}
		})
	}
}
