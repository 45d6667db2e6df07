package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisRepository(client), mr
}

func TestRedisRepositoryRoundTrip(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	user := User{ID: "id-1", Email: "a@x.com", PasswordDigest: []byte("digest"), CreatedAt: now, UpdatedAt: now}

	require.NoError(t, repo.Insert(ctx, user))
	assert.True(t, mr.Exists("mfa:user:a@x.com"))

	got, ok, err := repo.Get(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user, got)

	user.FaceIdentityRef = "person-1"
	user.FaceEnrolled = true
	require.NoError(t, repo.Replace(ctx, user))

	got, _, err = repo.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "person-1", got.FaceIdentityRef)
	assert.Equal(t, []byte("digest"), got.PasswordDigest)
}

func TestRedisRepositoryConflictsAndMisses(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	user := User{ID: "id-1", Email: "a@x.com"}

	require.NoError(t, repo.Insert(ctx, user))
	require.ErrorIs(t, repo.Insert(ctx, user), ErrAlreadyExists)

	_, ok, err := repo.Get(ctx, "b@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, repo.Replace(ctx, User{ID: "id-2", Email: "b@x.com"}), ErrNoSuchUser)
}

func TestRedisRepositoryBacksStore(t *testing.T) {
	repo, _ := newRedisRepo(t)
	store := NewStore(repo, nil, NewBcryptHasher(4))
	ctx := context.Background()

	_, err := store.Create(ctx, "User@X.com", "password-1")
	require.NoError(t, err)
	_, err = store.Create(ctx, "user@x.com", "password-2")
	require.ErrorIs(t, err, ErrAlreadyExists)

	user, ok, err := store.Lookup(ctx, "USER@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, store.CheckPassword(user, "password-1"))
}
