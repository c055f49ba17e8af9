package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agape-erp/agape-erp/internal/shared"
	_ "github.com/agape-erp/agape-erp/testing"
)

type memoryRepo struct {
	users  map[string]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]User)}
}

func (r *memoryRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (r *memoryRepo) Create(ctx context.Context, user User) (int64, error) {
	r.nextID++
	user.ID = r.nextID
	r.users[user.Username] = user
	return user.ID, nil
}

func seedUser(t *testing.T, repo *memoryRepo, username, password string, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo.nextID++
	repo.users[username] = User{
		ID:           repo.nextID,
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     active,
	}
}

func TestAuthenticate(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "clerk", "warehouse-42", true)
	seedUser(t, repo, "former", "warehouse-42", false)
	svc := NewService(repo, "test-secret", time.Hour)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "clerk", "warehouse-42")
	require.NoError(t, err)
	require.Equal(t, "clerk", user.Username)

	_, err = svc.Authenticate(ctx, "clerk", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "former", "warehouse-42")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost", "warehouse-42")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "clerk", "warehouse-42", true)
	svc := NewService(repo, "test-secret", time.Hour)

	user, err := svc.Authenticate(context.Background(), "clerk", "warehouse-42")
	require.NoError(t, err)

	token, expiresAt, err := svc.IssueToken(user)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	actor, err := svc.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, actor.UserID)
	require.Equal(t, "clerk", actor.Username)
}

func TestParseTokenRejectsForgedSecret(t *testing.T) {
	repo := newMemoryRepo()
	seedUser(t, repo, "clerk", "warehouse-42", true)
	issuer := NewService(repo, "secret-a", time.Hour)
	verifier := NewService(repo, "secret-b", time.Hour)

	user, err := issuer.Authenticate(context.Background(), "clerk", "warehouse-42")
	require.NoError(t, err)

	token, _, err := issuer.IssueToken(user)
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRegister(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, "test-secret", time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "clerk", "clerk@example.com", "warehouse-42")
	require.NoError(t, err)
	require.True(t, user.IsActive)
	require.NotEqual(t, "warehouse-42", user.PasswordHash)

	_, err = svc.Register(ctx, "clerk", "other@example.com", "warehouse-42")
	require.ErrorIs(t, err, ErrDuplicateUsername)

	authed, err := svc.Authenticate(ctx, "clerk", "warehouse-42")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
}
