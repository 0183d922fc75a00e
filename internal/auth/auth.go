package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims of a service token. Every token is bound to exactly one tenant:
// callers may only touch that tenant's data.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Service  string `json:"service"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks tenant-scoped service tokens.
type TokenIssuer interface {
	Issue(tenantID string) (string, error)
	Validate(tokenString string) (*Claims, error)
}

type JWTTokenIssuer struct {
	Secret  []byte
	Service string
	TTL     time.Duration
	now     func() time.Time
}
