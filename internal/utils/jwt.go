package utils

import (
	"errors"
	"time"

	"stakeoption/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "stakeoption-api"

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs an HS256 access token for userID.
func GenerateToken(userID uuid.UUID, role, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET not configured")
	}
	if role == "" {
		role = models.RoleUser
	}
	now := time.Now()
	claims := models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
		},
		UserID: userID.String(),
		Role:   role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken parses and validates a JWT token string.
func ParseToken(tokenStr, secret string) (*models.UserClaims, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET not configured")
	}
	token, err := jwt.ParseWithClaims(tokenStr, &models.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenUserParser adapts ParseToken to callers that only need the user.
func TokenUserParser(secret string) func(string) (uuid.UUID, error) {
	return func(token string) (uuid.UUID, error) {
		claims, err := ParseToken(token, secret)
		if err != nil {
			return uuid.Nil, err
		}
		return uuid.Parse(claims.UserID)
	}
}
