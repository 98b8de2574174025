package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/api"
	"github.com/cloo-solutions/knowctx/internal/domain"
	"github.com/cloo-solutions/knowctx/internal/logger"
)

type contextKey string

const (
	OrgIDKey  contextKey = "org_id"
	UserIDKey contextKey = "user_id"
)

// OrgScope reads the organization scope from X-Org-ID and the optional user
// from X-User-ID. Requests without an organization are rejected.
func OrgScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get("X-Org-ID"))
		if orgID == "" {
			api.HandleError(w, domain.ErrMissingOrgID)
			return
		}
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))

		ctx := context.WithValue(r.Context(), OrgIDKey, orgID)
		if userID != "" {
			ctx = context.WithValue(ctx, UserIDKey, userID)
		}
		ctx = logger.ContextWithLogger(ctx, logger.FromContext(ctx).With(zap.String("org_id", orgID)))
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.Scope().SetTag("org_id", orgID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetOrgID(ctx context.Context) string {
	orgID, _ := ctx.Value(OrgIDKey).(string)
	return orgID
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
