package middleware

import (
	"net/http"

	"github.com/Hung6066/IVF-sub008/trust"
)

// TrustContext builds the per-request trust context and attaches it to the
// request. It should run early in the chain so every downstream handler and
// the authorization pipeline see the same context. The correlation id is
// echoed back so clients can reference it.
func TrustContext(builder *trust.Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := builder.Build(r)
			w.Header().Set(trust.HeaderCorrelationID, tc.CorrelationID)
			next.ServeHTTP(w, r.WithContext(trust.WithContext(r.Context(), tc)))
		})
	}
}
