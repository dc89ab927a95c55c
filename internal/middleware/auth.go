package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chantier-tracker/internal/auth"
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionUserKey is the session field holding the logged-in user id.
const SessionUserKey = "user_id"

// UserLoader returns an enabled user or an error.
type UserLoader interface {
	Active(ctx context.Context, id uint) (*models.User, error)
}

// RequireAuth accepts a bearer token first and falls back to the session
// cookie set at login. The user is reloaded on every request so a disabled
// or deleted account loses access at once.
func RequireAuth(users UserLoader, tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint

		if header := c.GetHeader("Authorization"); header != "" {
			raw, ok := bearerToken(header)
			if !ok {
				abortJSON(c, http.StatusUnauthorized, "malformed authorization header")
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			userID = claims.UserID
		} else {
			sess := sessions.Default(c)
			if uid, ok := sess.Get(SessionUserKey).(uint); ok {
				userID = uid
			}
		}

		if userID == 0 {
			abortJSON(c, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := users.Active(c.Request.Context(), userID)
		switch {
		case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrInactiveUser):
			abortJSON(c, http.StatusUnauthorized, "account disabled or removed")
			return
		case err != nil:
			abortJSON(c, http.StatusInternalServerError, "failed to load user")
			return
		}

		setCurrentUser(c, user)
		c.Next()
	}
}

func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := map[models.UserRole]struct{}{}
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if _, ok := roleSet[user.Role]; !ok {
			abortJSON(c, http.StatusForbidden, "access denied")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
