package social

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

type reconcileJob struct {
	followerID string
	targetID   string
	enqAt      time.Time
}

// Reconciler 异步修复单边关注：以关注者的 following 为准重写对方的 followers
type Reconciler struct {
	docs    repository.DocumentRepository
	ch      chan reconcileJob
	applied atomic.Int64
	failed  atomic.Int64
}

func NewReconciler(docs repository.DocumentRepository, queueSize int) *Reconciler {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Reconciler{docs: docs, ch: make(chan reconcileJob, queueSize)}
}

// Start 启动 workers 个协程，返回停止函数（处理完已入队任务后退出）
func (r *Reconciler) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-r.ch:
					r.run(job)
				case <-stopCh:
					for {
						select {
						case job := <-r.ch:
							r.run(job)
						default:
							return
						}
					}
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reconciler) Enqueue(followerID, targetID string) {
	select {
	case r.ch <- reconcileJob{followerID: followerID, targetID: targetID, enqAt: time.Now()}:
	default:
		logger.Warn("reconciler queue full, drop job", zap.String("follower", followerID), zap.String("target", targetID))
	}
}

func (r *Reconciler) run(job reconcileJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Reconcile(ctx, job.followerID, job.targetID); err != nil {
		r.failed.Add(1)
		logger.Warn("reconcile edge failed",
			zap.String("follower", job.followerID), zap.String("target", job.targetID),
			zap.Duration("queued", time.Since(job.enqAt)), zap.Error(err))
		return
	}
	r.applied.Add(1)
}

// Reconcile 使 target.followers 与 follower.following 一致
func (r *Reconciler) Reconcile(ctx context.Context, followerID, targetID string) error {
	var follower, target model.User
	if err := r.docs.Get(ctx, model.CollectionUsers, followerID, &follower); err != nil {
		return err
	}
	if err := r.docs.Get(ctx, model.CollectionUsers, targetID, &target); err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}

	want := follower.IsFollowing(targetID)
	if target.HasFollower(followerID) == want {
		return nil
	}
	followers := model.Remove(target.Followers, followerID)
	if want {
		followers = model.AddUnique(target.Followers, followerID)
	}
	return r.docs.UpdatePartial(ctx, model.CollectionUsers, targetID, map[string]any{"followers": followers})
}

// QueueLen 当前队列长度（采样值）
func (r *Reconciler) QueueLen() int { return len(r.ch) }

// Applied 已成功处理的任务数
func (r *Reconciler) Applied() int64 { return r.applied.Load() }

// Failed 处理失败的任务数
func (r *Reconciler) Failed() int64 { return r.failed.Load() }
