package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/repository/repotest"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// exercise runs the behaviour every Mirror must share.
func exercise(t *testing.T, m Mirror) {
	ctx := context.Background()

	_, ok := m.Get(ctx, "u1")
	assert.False(t, ok)

	u1 := model.NewDefaultUser("u1", "a@example.com")
	m.Put(ctx, u1)
	m.Put(ctx, model.NewDefaultUser("u2", "b@example.com"))

	got, ok := m.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name)

	// copies, not shared state
	got.Name = "changed"
	again, _ := m.Get(ctx, "u1")
	assert.Equal(t, "a", again.Name)

	all := m.All(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, "u1", all[0].ID)
	assert.Equal(t, "u2", all[1].ID)

	m.Remove(ctx, "u1")
	_, ok = m.Get(ctx, "u1")
	assert.False(t, ok)

	m.Clear(ctx)
	assert.Empty(t, m.All(ctx))

	st := m.Stats()
	assert.Equal(t, int64(2), st.Puts)
	assert.GreaterOrEqual(t, st.Hits, int64(2))
	assert.Equal(t, 0, st.Size)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory(time.Minute, 10))
}

func TestRedis(t *testing.T) {
	_, client := setupRedis(t)
	exercise(t, NewRedis(client, "s1", time.Minute))
}

func TestMemory_TTLAndEviction(t *testing.T) {
	m := NewMemory(time.Minute, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Put(ctx, &model.User{ID: "a"})
	now = now.Add(time.Second)
	m.Put(ctx, &model.User{ID: "b"})
	now = now.Add(time.Second)
	m.Put(ctx, &model.User{ID: "c"})

	_, ok := m.Get(ctx, "a")
	assert.False(t, ok, "oldest entry evicted")
	assert.Equal(t, int64(1), m.Stats().Evictions)

	now = now.Add(2 * time.Minute)
	_, ok = m.Get(ctx, "c")
	assert.False(t, ok, "expired")
	assert.Empty(t, m.All(ctx))
}

func TestRedis_TTLAndNamespaces(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	s1 := NewRedis(client, "s1", time.Minute)
	s2 := NewRedis(client, "s2", time.Minute)

	s1.Put(ctx, &model.User{ID: "u1"})
	_, ok := s2.Get(ctx, "u1")
	assert.False(t, ok, "sessions do not share entries")
	assert.Empty(t, s2.All(ctx))

	s1.Clear(ctx)
	s1.Put(ctx, &model.User{ID: "u1"})
	require.NoError(t, client.Set(ctx, s1.userKey("u2"), "{}", 0).Err())
	require.NoError(t, client.SAdd(ctx, s1.membersKey(), "u3").Err())

	all := s1.All(ctx)
	require.Len(t, all, 1, "members without a profile are dropped")
	assert.Equal(t, int64(1), s1.Stats().Evictions)

	mr.FastForward(2 * time.Minute)
	_, ok = s1.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestRedis_Unavailable(t *testing.T) {
	mr, client := setupRedis(t)
	m := NewRedis(client, "s1", time.Minute)
	mr.Close()

	ctx := context.Background()
	m.Put(ctx, &model.User{ID: "u1"})
	_, ok := m.Get(ctx, "u1")
	assert.False(t, ok)
	assert.Empty(t, m.All(ctx))
}

func TestNew(t *testing.T) {
	m, err := New(config.MirrorConfig{Driver: "memory"}, nil, "x")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, m)

	_, err = New(config.MirrorConfig{Driver: "redis"}, nil, "x")
	assert.Error(t, err)

	_, client := setupRedis(t)
	m, err = New(config.MirrorConfig{Driver: "redis"}, client, "x")
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, m)
}

func TestReadThrough(t *testing.T) {
	docs := repository.NewDocumentRepository(repotest.NewDB(t))
	ctx := context.Background()
	require.NoError(t, docs.Set(ctx, model.CollectionUsers, "u1", model.NewDefaultUser("u1", "a@example.com")))

	m := NewMemory(time.Minute, 10)
	u, err := ReadThrough(ctx, m, docs, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, ok := m.Get(ctx, "u1")
	assert.True(t, ok, "loaded profile is mirrored")

	_, err = ReadThrough(ctx, m, docs, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
