package middleware

import (
	"context"
	"net/http"

	"github.com/fernwake/questlog/backend/pkg/utils"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// RequireUser extracts the authenticated user from the X-User-ID header set
// by the auth proxy in front of this service. Requests without one are
// terminal for the attempt, not retryable.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			utils.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user stored by RequireUser.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
