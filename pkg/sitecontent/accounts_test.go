package sitecontent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-site/pkg/sitecontent"
	"github.com/tendant/simple-site/pkg/sitecontent/repo/memory"
	memorystorage "github.com/tendant/simple-site/pkg/sitecontent/storage/memory"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.Register(ctx, sitecontent.RegisterRequest{
		Username:  "alice",
		Email:     "  Alice@Example.COM ",
		Password:  "password123",
		IPAddress: "203.0.113.7",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "alice@example.com", session.Principal.Email)
	assert.NotEqual(t, "password123", session.Principal.PasswordHash)

	entries, err := f.svc.ListActivity(ctx, session.Principal.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sitecontent.ActionRegister, entries[0].Action)
	assert.Equal(t, "203.0.113.7", entries[0].IPAddress)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := f.svc.Register(ctx, sitecontent.RegisterRequest{
			Username: "alice2",
			Email:    "alice@example.com",
			Password: "password123",
		})
		assert.ErrorIs(t, err, sitecontent.ErrConflict)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := f.svc.Register(ctx, sitecontent.RegisterRequest{
			Username: "alice",
			Email:    "other@example.com",
			Password: "password123",
		})
		assert.ErrorIs(t, err, sitecontent.ErrConflict)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			req  sitecontent.RegisterRequest
		}{
			{name: "short username", req: sitecontent.RegisterRequest{Username: "ab", Email: "a@example.com", Password: "password123"}},
			{name: "long username", req: sitecontent.RegisterRequest{Username: strings.Repeat("u", 31), Email: "a@example.com", Password: "password123"}},
			{name: "bad email", req: sitecontent.RegisterRequest{Username: "carol", Email: "not-an-email", Password: "password123"}},
			{name: "missing email", req: sitecontent.RegisterRequest{Username: "carol", Password: "password123"}},
			{name: "short password", req: sitecontent.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "12345"}},
			{name: "long password", req: sitecontent.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: strings.Repeat("p", 101)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Register(ctx, tt.req)
				assert.ErrorIs(t, err, sitecontent.ErrValidation)
			})
		}
	})
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "alice")

	session, err := f.svc.Login(ctx, sitecontent.LoginRequest{
		Email:    "ALICE@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, id, session.Principal.ID)

	claims, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.PrincipalID)
	assert.Equal(t, "alice", claims.Username)

	_, errWrongPassword := f.svc.Login(ctx, sitecontent.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	_, errUnknownEmail := f.svc.Login(ctx, sitecontent.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, errWrongPassword, sitecontent.ErrUnauthenticated)
	assert.ErrorIs(t, errUnknownEmail, sitecontent.ErrUnauthenticated)
	assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())

	_, err = f.svc.Login(ctx, sitecontent.LoginRequest{Email: "alice@example.com"})
	assert.ErrorIs(t, err, sitecontent.ErrValidation)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, token := range []string{"", "   ", "garbage", "a.b.c"} {
		_, err := f.svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, sitecontent.ErrUnauthenticated, token)
	}
}

func TestGetPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "alice")

	principal, err := f.svc.GetPrincipal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.Username)

	_, err = f.svc.GetPrincipal(ctx, uuid.New())
	assert.ErrorIs(t, err, sitecontent.ErrNotFoundOrForbidden)

	_, err = f.svc.GetPrincipal(ctx, uuid.Nil)
	assert.ErrorIs(t, err, sitecontent.ErrUnauthenticated)
}

func TestAccountsRequireAuthCapabilities(t *testing.T) {
	svc, err := sitecontent.New(
		sitecontent.WithRepository(memory.New()),
		sitecontent.WithBlobStore(memorystorage.New()),
	)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), sitecontent.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	assert.Error(t, err)

	_, err = svc.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, sitecontent.ErrUnauthenticated)
}
