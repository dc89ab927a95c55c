package middleware

import (
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

const currentUserKey = "CurrentUser"

func setCurrentUser(c *gin.Context, u *models.User) {
	c.Set(currentUserKey, u)
}

// CurrentUser returns the user put in the context by RequireAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// ActorFrom is the services view of the current user. It is the zero Actor
// on public routes.
func ActorFrom(c *gin.Context) services.Actor {
	u, _ := CurrentUser(c)
	return services.ActorOf(u)
}
