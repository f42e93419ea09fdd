package apikey

import (
	"log/slog"
	"net/http"
	"time"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// Header carries the client key on every authenticated request.
const Header = "X-API-KEY"

// Require authenticates the X-API-KEY header against the store and enforces
// the required scope. The client's key and scope land in the request context
// for handlers and audit logging.
func Require(store Store, required Scope, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := id.APIKeyID(r.Header.Get(Header))
			if key == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing API key"))
				return
			}

			client, err := store.FindByKey(ctx, key)
			if err != nil {
				if logger != nil {
					logger.ErrorContext(ctx, "api key lookup failed",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}
			if client == nil || !client.Active {
				if logger != nil {
					logger.WarnContext(ctx, "rejected API key",
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid API key"))
				return
			}
			if !client.Scope.Allows(required) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient scope"))
				return
			}

			// Usage stamp is best effort; key checks must not slow down or
			// fail the tap path.
			if err := store.TouchLastUsed(ctx, key, timeNow()); err != nil && logger != nil {
				logger.WarnContext(ctx, "api key usage stamp failed", "error", err)
			}

			ctx = requestcontext.WithClientKey(ctx, client.Key)
			ctx = requestcontext.WithClientScope(ctx, string(client.Scope))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
