package authz

import "github.com/Siva2k2k/ES-TM-sub003/internal/models"

// Actor is the authenticated user performing a request. It is supplied by
// the authentication layer and trusted as already verified.
type Actor struct {
	ID       string
	Email    string
	Role     models.UserRole
	FullName string
}

// ActorFromClaims converts validated token claims into an Actor.
func ActorFromClaims(claims *models.JWTClaims) *Actor {
	if claims == nil {
		return nil
	}
	return &Actor{
		ID:       claims.UserID,
		Email:    claims.Email,
		Role:     claims.Role,
		FullName: claims.FullName,
	}
}
