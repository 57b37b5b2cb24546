package apikey

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"manege-service/pkg/response"
	"manege-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

const Header = "X-API-Key"

type contextKey struct{}

// MemberResolver maps an API key to the member it belongs to. Inactive and
// expired keys must come back as response.ErrNotAuthenticated.
type MemberResolver interface {
	GetMemberIDByAPIKey(ctx context.Context, key string) (uuid.UUID, error)
}

// New rejects requests without a valid X-API-Key and stores the resolved
// member id on the request context for the handlers downstream.
func New(log *slog.Logger, resolver MemberResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With(
				slog.String("component", "middleware/apikey"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			key := strings.TrimSpace(r.Header.Get(Header))
			if key == "" {
				reqLog.Info("missing api key")

				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error(string(response.NOT_AUTHENTICATED), "api key required"))
				return
			}

			memberID, err := resolver.GetMemberIDByAPIKey(r.Context(), key)
			if err != nil {
				reqLog.Info("api key rejected", sl.Err(err))

				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error(string(response.NOT_AUTHENTICATED), "invalid api key"))
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, memberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

// MemberID returns the member resolved by the middleware. The second result
// is false on routes the middleware does not wrap.
func MemberID(ctx context.Context) (uuid.UUID, bool) {
	memberID, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return memberID, ok
}

// WithMemberID injects a member id the way the middleware does.
func WithMemberID(ctx context.Context, memberID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, memberID)
}
