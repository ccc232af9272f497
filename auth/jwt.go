package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type JWTValidator struct {
	// 用于签署和验证令牌的密钥
	secret []byte
	// 令牌有效期
	ttl time.Duration
}

func NewJWTValidator(secret string, ttl time.Duration) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate 签发 HS256 令牌, 返回值可直接放进 authorization
func (v *JWTValidator) Generate(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

func (v *JWTValidator) Validate(_ context.Context, credential string) error {
	raw, ok := strings.CutPrefix(credential, "Bearer ")
	if !ok {
		return fmt.Errorf("unexpected authorization scheme")
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected token signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
