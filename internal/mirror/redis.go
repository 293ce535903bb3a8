package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

// Redis mirrors profiles as JSON strings with a TTL, plus a member set used
// to enumerate them. Redis failures are logged and read as misses.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	counters
}

func NewRedis(client *redis.Client, namespace string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: fmt.Sprintf("fv:mirror:%s:", namespace), ttl: ttl}
}

func (r *Redis) userKey(id string) string { return r.prefix + "user:" + id }
func (r *Redis) membersKey() string       { return r.prefix + "members" }

func (r *Redis) Get(ctx context.Context, id string) (*model.User, bool) {
	data, err := r.client.Get(ctx, r.userKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("mirror get failed", zap.String("id", id), zap.Error(err))
		}
		r.misses.Add(1)
		return nil, false
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return &u, true
}

func (r *Redis) Put(ctx context.Context, u *model.User) {
	if u == nil || u.ID == "" {
		return
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.userKey(u.ID), payload, r.ttl)
	pipe.SAdd(ctx, r.membersKey(), u.ID)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.membersKey(), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("mirror put failed", zap.String("id", u.ID), zap.Error(err))
		return
	}
	r.puts.Add(1)
}

func (r *Redis) All(ctx context.Context) []*model.User {
	ids, err := r.client.SMembers(ctx, r.membersKey()).Result()
	if err != nil {
		logger.Warn("mirror list failed", zap.Error(err))
		return []*model.User{}
	}
	if len(ids) == 0 {
		return []*model.User{}
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.userKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("mirror mget failed", zap.Error(err))
		return []*model.User{}
	}

	out := make([]*model.User, 0, len(ids))
	var stale []interface{}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var u model.User
		if err := json.Unmarshal([]byte(str), &u); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		out = append(out, &u)
	}
	// 过期的资料从成员集合中剔除
	if len(stale) > 0 {
		if n, err := r.client.SRem(ctx, r.membersKey(), stale...).Result(); err == nil {
			r.evictions.Add(n)
		}
	}
	return sortByID(out)
}

func (r *Redis) Remove(ctx context.Context, id string) {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.userKey(id))
	pipe.SRem(ctx, r.membersKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("mirror remove failed", zap.String("id", id), zap.Error(err))
	}
}

func (r *Redis) Clear(ctx context.Context) {
	ids, err := r.client.SMembers(ctx, r.membersKey()).Result()
	if err != nil {
		logger.Warn("mirror clear failed", zap.Error(err))
		return
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.userKey(id))
	}
	keys = append(keys, r.membersKey())
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("mirror clear failed", zap.Error(err))
	}
}

func (r *Redis) Stats() Stats {
	n, err := r.client.SCard(context.Background(), r.membersKey()).Result()
	if err != nil {
		n = 0
	}
	return r.snapshot(int(n))
}
