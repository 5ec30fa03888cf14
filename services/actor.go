package services

import "github.com/kendall-kelly/servicehub-api/models"

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	ID   uint
	Role models.Role
}

// ActorFromUser builds an Actor from a resolved user row.
func ActorFromUser(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}
