package middleware

import (
	"github.com/golang-jwt/jwt/v4"
)

type UserToken struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ClientID string `json:"azp"`
	UserID   string `json:"sub"`
	Scopes   string `json:"scope"`
	jwt.RegisteredClaims
}

// Actor - the identity stamped on audit events and actor fields
func (t UserToken) Actor() string {
	if t.Email != "" {
		return t.Email
	}
	return t.UserID
}
