package auth

import (
	"errors"
	"fmt"
	"time"

	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

// User returns the identity carried by the claims
func (c *Claims) User() models.User {
	return models.User{UserID: c.Subject, Name: c.Name, Role: c.Role}
}

// TokenService issues and verifies bearer tokens for the API server
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service signing with secret; tokens expire after ttl
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs an HS256 token for user
func (s *TokenService) Issue(user models.User) (string, time.Time, error) {
	now := s.now()
	expiration := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Name: user.Name,
		Role: user.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, expiration, nil
}

// Verify validates signature and expiry and returns the claims
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("auth: %w - %v", biddingerrors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("auth: %w - invalid token claims", biddingerrors.ErrUnauthorized)
	}
	return claims, nil
}

// DecodeClaims reads claims without verifying the signature. Clients cannot
// verify tokens; they only need the identity to display and to gate bidding.
func DecodeClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("auth: decode token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("auth: decode token: missing subject")
	}
	return claims, nil
}
