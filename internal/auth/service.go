package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/evaluation-sync/internal"
)

const DefaultServiceName = "evaluation-sync"

// NewJWTTokenIssuer creates an HS256 issuer. A zero ttl means five minutes.
func NewJWTTokenIssuer(secret string, ttl time.Duration) *JWTTokenIssuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JWTTokenIssuer{
		Secret:  []byte(secret),
		Service: DefaultServiceName,
		TTL:     ttl,
		now:     time.Now,
	}
}

func (j *JWTTokenIssuer) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}

func (j *JWTTokenIssuer) Issue(tenantID string) (string, error) {
	if tenantID == "" {
		return "", internal.ErrTenantRequired
	}
	now := j.clock()

	claims := &Claims{
		TenantID: tenantID,
		Service:  j.Service,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   j.Service,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return tokenString, nil
}

func (j *JWTTokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithTimeFunc(j.clock))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TenantID == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
