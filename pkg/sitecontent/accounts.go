package sitecontent

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 6
	maxPasswordLength = 100
)

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return nil, invalid("username", fmt.Sprintf("username must be %d-%d characters", minUsernameLength, maxUsernameLength))
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if n := len(req.Password); n < minPasswordLength || n > maxPasswordLength {
		return nil, invalid("password", fmt.Sprintf("password must be %d-%d characters", minPasswordLength, maxPasswordLength))
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	principal := &Principal{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    s.now(),
	}
	if err := s.repository.CreatePrincipal(ctx, principal); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, fmt.Errorf("%w: user with this email or username already exists", ErrConflict)
		}
		s.logger.Error("failed to create principal", "email", email, "error", err)
		return nil, classify(err)
	}

	session, err := s.issueSession(principal)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, Caller{PrincipalID: principal.ID, IPAddress: req.IPAddress, UserAgent: req.UserAgent},
		ActionRegister, map[string]interface{}{"username": principal.Username})
	return session, nil
}

// Login answers the same error for an unknown email and a wrong password.
func (s *service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := s.requireAuth(); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, invalid("password", "password is required")
	}

	principal, err := s.repository.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, classify(err)
	}
	if !s.hasher.Verify(req.Password, principal.PasswordHash) {
		return nil, errInvalidCredentials
	}

	session, err := s.issueSession(principal)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, Caller{PrincipalID: principal.ID, IPAddress: req.IPAddress, UserAgent: req.UserAgent},
		ActionLogin, map[string]interface{}{})
	return session, nil
}

func (s *service) GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error) {
	if id == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	principal, err := s.repository.GetPrincipal(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return principal, nil
}

// Authenticate verifies a bearer token and returns its claims.
func (s *service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if s.tokens == nil {
		return nil, fmt.Errorf("%w: token issuer not configured", ErrUnauthenticated)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token required", ErrUnauthenticated)
	}
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.PrincipalID == uuid.Nil {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims, nil
}

func (s *service) issueSession(principal *Principal) (*Session, error) {
	token, expiresAt, err := s.tokens.IssueToken(Claims{
		PrincipalID: principal.ID,
		Username:    principal.Username,
		Email:       principal.Email,
	})
	if err != nil {
		s.logger.Error("failed to issue token", "principal_id", principal.ID, "error", err)
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Principal: principal}, nil
}

func (s *service) requireAuth() error {
	if s.hasher == nil || s.tokens == nil {
		return errors.New("accounts are not configured: password hasher and token issuer are required")
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", invalid("email", "valid email is required")
	}
	return e, nil
}
