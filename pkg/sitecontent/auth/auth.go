// Package auth provides the password digest and bearer token capabilities
// the service consumes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/tendant/simple-site/pkg/sitecontent"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost used for stored credentials
const DefaultBcryptCost = 12

// DefaultTokenExpiry is how long an issued token stays valid
const DefaultTokenExpiry = 7 * 24 * time.Hour

const minSecretLength = 16

// BcryptHasher implements sitecontent.PasswordHasher
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher creates a hasher; a cost outside bcrypt's range uses DefaultBcryptCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// JWTIssuer implements sitecontent.TokenIssuer with HS256 tokens
type JWTIssuer struct {
	tokenAuth *jwtauth.JWTAuth
	expiry    time.Duration
	now       func() time.Time
}

// NewJWTIssuer creates an issuer signing with secret
func NewJWTIssuer(secret string, expiry time.Duration) (*JWTIssuer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &JWTIssuer{
		tokenAuth: jwtauth.New("HS256", []byte(secret), nil),
		expiry:    expiry,
		now:       time.Now,
	}, nil
}

// TokenAuth exposes the underlying jwtauth instance for router middleware
func (j *JWTIssuer) TokenAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTIssuer) IssueToken(claims sitecontent.Claims) (string, time.Time, error) {
	if claims.PrincipalID == uuid.Nil {
		return "", time.Time{}, errors.New("token subject is required")
	}

	now := j.now()
	expiresAt := now.Add(j.expiry).Truncate(time.Second)
	payload := map[string]interface{}{
		"sub":      claims.PrincipalID.String(),
		"username": claims.Username,
		"email":    claims.Email,
	}
	jwtauth.SetIssuedAt(payload, now)
	jwtauth.SetExpiry(payload, expiresAt)

	_, token, err := j.tokenAuth.Encode(payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (j *JWTIssuer) VerifyToken(tokenString string) (*sitecontent.Claims, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return nil, err
	}

	principalID, err := uuid.Parse(token.Subject())
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}

	return &sitecontent.Claims{
		PrincipalID: principalID,
		Username:    stringClaim(token.Get("username")),
		Email:       stringClaim(token.Get("email")),
		ExpiresAt:   token.Expiration(),
	}, nil
}

func stringClaim(v interface{}, ok bool) string {
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
