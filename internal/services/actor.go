package services

import "chantier-tracker/internal/models"

// Actor is the authenticated user on whose behalf a write happens.
type Actor struct {
	UserID uint
	Role   models.UserRole
}

func ActorOf(u *models.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{UserID: u.ID, Role: u.Role}
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// CanManage reports whether the actor may write chantiers, clients and
// interventions without ownership checks.
func (a Actor) CanManage() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleGestionnaire
}
