package identity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver validates HMAC-signed tokens and reads the user id from a claim.
type JWTResolver struct {
	secret []byte
	claim  string
}

func NewJWTResolver(secret string, claim string) *JWTResolver {
	if claim == "" {
		claim = "userId"
	}
	return &JWTResolver{secret: []byte(secret), claim: claim}
}

func (r *JWTResolver) Resolve(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	switch v := claims[r.claim].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	return "", ErrInvalidToken
}
