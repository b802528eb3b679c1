package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims mirrors the identity provider's custom claims: the admin flag,
// role and access tier set by the elevation gate.
type Claims struct {
	TokenType  string `json:"token_type"`
	Email      string `json:"email,omitempty"`
	Admin      bool   `json:"admin,omitempty"`
	Role       string `json:"role,omitempty"`
	AccessTier string `json:"access_tier,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
}

func NewJWTManager(issuer, audience, secret string) *JWTManager {
	return &JWTManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(secret),
	}
}

// SignIDToken mints a bearer token for the given identity and claims.
func (m *JWTManager) SignIDToken(identityKey, email string, claims Claims, ttl time.Duration) (string, error) {
	claims.TokenType = "id"
	claims.Email = email
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   identityKey,
		Audience:  []string{m.audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifyIDToken parses and validates a bearer token, returning its claims.
func (m *JWTManager) VerifyIDToken(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != "id" {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}
