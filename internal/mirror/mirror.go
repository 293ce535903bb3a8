// Package mirror keeps a session-local, read-through copy of the user
// profiles a client has seen. It is a cache: every entry can be rebuilt from
// the document store.
package mirror

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
)

// Mirror is a keyed set of profiles. Implementations return copies, so
// callers may modify what they get back.
type Mirror interface {
	Get(ctx context.Context, id string) (*model.User, bool)
	Put(ctx context.Context, u *model.User)
	All(ctx context.Context) []*model.User
	Remove(ctx context.Context, id string)
	Clear(ctx context.Context)
	Stats() Stats
}

// Stats summarises cache traffic.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Puts      int64 `json:"puts"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	puts      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) snapshot(size int) Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Puts:      c.puts.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
	}
}

// New builds the mirror selected by cfg.Driver. namespace isolates one
// session's entries when the backend is shared.
func New(cfg config.MirrorConfig, client *redis.Client, namespace string) (Mirror, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.TTL, cfg.MaxSize), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis mirror needs a redis client")
		}
		return NewRedis(client, namespace, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported mirror driver %q", cfg.Driver)
	}
}

// ReadThrough returns the mirrored profile, loading and mirroring it from
// the document store on a miss.
func ReadThrough(ctx context.Context, m Mirror, docs repository.DocumentRepository, id string) (*model.User, error) {
	if u, ok := m.Get(ctx, id); ok {
		return u, nil
	}
	var u model.User
	if err := docs.Get(ctx, model.CollectionUsers, id, &u); err != nil {
		return nil, err
	}
	m.Put(ctx, &u)
	return u.Clone(), nil
}

func sortByID(users []*model.User) []*model.User {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
