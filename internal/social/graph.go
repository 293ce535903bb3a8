// Package social implements the follow graph kept on user documents: each
// edge lives twice, in the follower's following set and in the followee's
// followers set, and the two writes are not atomic.
package social

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/mirror"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

const (
	opFollow   = "follow"
	opUnfollow = "unfollow"
)

// Graph 关注关系服务（多个会话共享）
type Graph struct {
	docs       repository.DocumentRepository
	reconciler *Reconciler
}

// NewGraph 创建关系服务；reconciler 可为 nil
func NewGraph(docs repository.DocumentRepository, reconciler *Reconciler) *Graph {
	return &Graph{docs: docs, reconciler: reconciler}
}

// Follow 关注 targetID，返回更新后的 caller。
//
// 第三步（写对方 followers）失败时仍返回已更新的 caller，并附带
// Diverged 的 PersistenceError；对方资料不存在时仅记录日志。
func (g *Graph) Follow(ctx context.Context, m mirror.Mirror, caller *model.User, targetID string) (*model.User, error) {
	if err := checkEdge(caller, targetID); err != nil {
		return nil, err
	}
	if caller.IsFollowing(targetID) {
		return caller.Clone(), nil
	}

	updated := caller.Clone()
	updated.Following = model.AddUnique(caller.Following, targetID)
	if err := g.docs.UpdatePartial(ctx, model.CollectionUsers, caller.ID, map[string]any{
		"following": updated.Following,
	}); err != nil {
		return nil, &apperr.PersistenceError{Op: opFollow, Collection: model.CollectionUsers, ID: caller.ID, Err: err}
	}

	target, err := g.updateTarget(ctx, opFollow, targetID, caller.ID, model.AddUnique)
	m.Put(ctx, updated)
	if target != nil {
		m.Put(ctx, target)
	}
	return updated, err
}

// Unfollow 取消关注，语义与 Follow 对称
func (g *Graph) Unfollow(ctx context.Context, m mirror.Mirror, caller *model.User, targetID string) (*model.User, error) {
	if err := checkEdge(caller, targetID); err != nil {
		return nil, err
	}
	if !caller.IsFollowing(targetID) {
		return caller.Clone(), nil
	}

	updated := caller.Clone()
	updated.Following = model.Remove(caller.Following, targetID)
	if err := g.docs.UpdatePartial(ctx, model.CollectionUsers, caller.ID, map[string]any{
		"following": updated.Following,
	}); err != nil {
		return nil, &apperr.PersistenceError{Op: opUnfollow, Collection: model.CollectionUsers, ID: caller.ID, Err: err}
	}

	target, err := g.updateTarget(ctx, opUnfollow, targetID, caller.ID, model.Remove)
	m.Put(ctx, updated)
	if target != nil {
		m.Put(ctx, target)
	}
	return updated, err
}

func checkEdge(caller *model.User, targetID string) error {
	if caller == nil {
		return apperr.ErrNotAuthenticated
	}
	if targetID == "" {
		return fmt.Errorf("target id is required: %w", apperr.ErrInvalidInput)
	}
	if caller.ID == targetID {
		return apperr.ErrFollowSelf
	}
	return nil
}

// updateTarget 写对方的 followers；返回写入后的对方资料
func (g *Graph) updateTarget(ctx context.Context, op, targetID, followerID string, apply func([]string, string) []string) (*model.User, error) {
	var target model.User
	err := g.docs.Get(ctx, model.CollectionUsers, targetID, &target)
	if errors.Is(err, apperr.ErrNotFound) {
		logger.Warn("target profile missing, edge kept on caller only",
			zap.String("op", op), zap.String("target", targetID), zap.String("follower", followerID))
		return nil, nil
	}
	if err == nil {
		target.Followers = apply(target.Followers, followerID)
		err = g.docs.UpdatePartial(ctx, model.CollectionUsers, targetID, map[string]any{
			"followers": target.Followers,
		})
	}
	if err != nil {
		if g.reconciler != nil {
			g.reconciler.Enqueue(followerID, targetID)
		}
		return nil, &apperr.PersistenceError{Op: op, Collection: model.CollectionUsers, ID: targetID, Diverged: true, Err: err}
	}
	return &target, nil
}

// IsFollowing 纯成员判断
func IsFollowing(caller *model.User, targetID string) bool {
	return caller.IsFollowing(targetID)
}

// MutualFollows 返回与 caller 互相关注的用户（不含 caller 自身）。
// 按 caller.Following 逐个读穿镜像，镜像条目过期后从文档重新加载；缺失的资料跳过。
func (g *Graph) MutualFollows(ctx context.Context, m mirror.Mirror, caller *model.User) []*model.User {
	out := []*model.User{}
	if caller == nil {
		return out
	}
	for _, id := range caller.Following {
		if id == caller.ID {
			continue
		}
		u, err := mirror.ReadThrough(ctx, m, g.docs, id)
		if err != nil {
			logger.Warn("skip followed profile in mutual follows",
				zap.String("user", caller.ID), zap.String("followed", id), zap.Error(err))
			continue
		}
		if u.IsFollowing(caller.ID) {
			out = append(out, u)
		}
	}
	return out
}

// Lookup 读穿查询用户资料
func (g *Graph) Lookup(ctx context.Context, m mirror.Mirror, id string) (*model.User, error) {
	return mirror.ReadThrough(ctx, m, g.docs, id)
}

// Following 分页列出 userID 关注的用户 ID
func (g *Graph) Following(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	u, err := g.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return paginate(u.Following, page, pageSize), nil
}

// Followers 分页列出 userID 的粉丝 ID
func (g *Graph) Followers(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	u, err := g.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return paginate(u.Followers, page, pageSize), nil
}

func (g *Graph) load(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	if err := g.docs.Get(ctx, model.CollectionUsers, userID, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func paginate(ids []string, page, pageSize int) []string {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize
	if offset >= len(ids) {
		return []string{}
	}
	end := offset + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	res := make([]string, end-offset)
	copy(res, ids[offset:end])
	return res
}
