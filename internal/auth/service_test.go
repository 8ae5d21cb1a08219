package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/shared"
	"github.com/stashspace/stashspace/internal/users"
)

type fakeDirectory struct {
	byEmail map[string]*users.User
	byID    map[int64]*users.User
}

func (f *fakeDirectory) GetByEmail(_ context.Context, email string) (*users.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeDirectory) GetByID(_ context.Context, id int64) (*users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func newService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	trader := &users.User{ID: 7, Email: "trader@example.com", Role: authz.RoleTrader, PasswordHash: string(hash), IsActive: true}
	inactive := &users.User{ID: 9, Email: "gone@example.com", Role: authz.RoleTrader, PasswordHash: string(hash), IsActive: false}
	dir := &fakeDirectory{
		byEmail: map[string]*users.User{trader.Email: trader, inactive.Email: inactive},
		byID:    map[int64]*users.User{trader.ID: trader, inactive.ID: inactive},
	}
	return NewService(dir, client), mr
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, int64(7), user.ID)

	actor, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, authz.Actor{ID: 7, Role: authz.RoleTrader}, actor)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "trader@example.com", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "gone@example.com", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)

	mr.FastForward(TokenTTL + 1)

	_, err = svc.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "trader@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareInjectsActor(t *testing.T) {
	svc, _ := newService(t)
	token, _, err := svc.Login(context.Background(), "trader@example.com", "correct horse")
	require.NoError(t, err)

	var got authz.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = authz.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/inquiries", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	svc.Middleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, authz.Actor{ID: 7, Role: authz.RoleTrader}, got)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	svc, _ := newService(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/inquiries", nil)
	rec := httptest.NewRecorder()
	svc.Middleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
