// Package auth verifies the bearer tokens issued by the identity service.
// Tokens are HS256-signed; several secrets may be active at once so keys can
// be rotated without logging everybody out.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSecrets    = errors.New("auth: at least one signing secret is required")
	ErrInvalidToken = errors.New("auth: invalid token")
)

type Claims struct {
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier signs with the first secret and accepts any of them.
type Verifier struct {
	secrets [][]byte
	issuer  string
	parser  *jwt.Parser
}

func NewVerifier(secrets []string, issuer string) (*Verifier, error) {
	if len(secrets) == 0 {
		return nil, ErrNoSecrets
	}
	v := &Verifier{issuer: issuer}
	for _, s := range secrets {
		if s == "" {
			return nil, ErrNoSecrets
		}
		v.secrets = append(v.secrets, []byte(s))
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

func (v *Verifier) Sign(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: actor.UserID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secrets[0])
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the caller identified by raw. A missing role means a
// regular user.
func (v *Verifier) Verify(raw string) (domain.Actor, error) {
	var lastErr error
	for _, secret := range v.secrets {
		claims := &Claims{}
		_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err == nil {
			return claims.actor()
		}
		lastErr = err
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, lastErr)
}

func (c *Claims) actor() (domain.Actor, error) {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	if id == "" {
		return domain.Actor{}, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	role := c.Role
	switch role {
	case "":
		role = domain.RoleUser
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return domain.Actor{UserID: id, Role: role}, nil
}
