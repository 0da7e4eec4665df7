package models

import "github.com/golang-jwt/jwt/v5"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserClaims is the access token payload issued by the auth service.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (c *UserClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
