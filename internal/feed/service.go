package feed

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
)

const maxCommentLen = 500

// Service 语音动态目录（所有会话共享）。每次变更先写文档，成功后再替换内存
type Service struct {
	docs repository.DocumentRepository
	now  func() time.Time

	mu    sync.RWMutex
	posts map[string]*model.Voz
}

func NewService(docs repository.DocumentRepository) *Service {
	return &Service{docs: docs, now: time.Now, posts: map[string]*model.Voz{}}
}

// Load 从 voces 集合加载全部动态
func (s *Service) Load(ctx context.Context) error {
	raws, err := s.docs.List(ctx, model.CollectionVoces)
	if err != nil {
		return fmt.Errorf("load voces: %w", err)
	}
	vozes, err := repository.DecodeAll[model.Voz](raws)
	if err != nil {
		return fmt.Errorf("decode voces: %w", err)
	}

	posts := make(map[string]*model.Voz, len(vozes))
	for _, v := range vozes {
		v.IsLiked = false
		v.CommentsCount = len(v.Comments)
		posts[v.ID] = v
	}
	s.mu.Lock()
	s.posts = posts
	s.mu.Unlock()
	return nil
}

// Publish 发布动态，作者名与头像取发布时快照
func (s *Service) Publish(ctx context.Context, author *model.User, audioURL, caption string) (*model.Voz, error) {
	if author == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	if audioURL == "" {
		return nil, fmt.Errorf("audio is required: %w", apperr.ErrInvalidInput)
	}

	v := &model.Voz{
		ID:            uuid.New().String(),
		UserID:        author.ID,
		UserName:      author.Name,
		UserAvatarURL: author.AvatarURL,
		AudioURL:      audioURL,
		Caption:       strings.TrimSpace(caption),
		LikedBy:       []string{},
		Comments:      []model.Comment{},
		CreatedAt:     s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, "publish", v); err != nil {
		return nil, err
	}
	s.posts[v.ID] = v
	return v.ForViewer(author.ID), nil
}

// ToggleLike 切换 viewer 的点赞；计数不会小于 0
func (s *Service) ToggleLike(ctx context.Context, viewerID, vozID string) (*model.Voz, error) {
	if viewerID == "" {
		return nil, apperr.ErrNotAuthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.posts[vozID]
	if !ok {
		return nil, fmt.Errorf("voz %s: %w", vozID, apperr.ErrNotFound)
	}

	next := cur.Clone()
	if slices.Contains(next.LikedBy, viewerID) {
		next.LikedBy = model.Remove(next.LikedBy, viewerID)
		next.LikesCount = max(next.LikesCount-1, 0)
	} else {
		next.LikedBy = model.AddUnique(next.LikedBy, viewerID)
		next.LikesCount++
	}
	if err := s.persist(ctx, "like", next); err != nil {
		return nil, err
	}
	s.posts[vozID] = next
	return next.ForViewer(viewerID), nil
}

// AddComment 追加评论，CommentsCount 始终等于评论数
func (s *Service) AddComment(ctx context.Context, author *model.User, vozID, text string) (*model.Comment, error) {
	if author == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > maxCommentLen {
		return nil, fmt.Errorf("comment must be 1-%d characters: %w", maxCommentLen, apperr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.posts[vozID]
	if !ok {
		return nil, fmt.Errorf("voz %s: %w", vozID, apperr.ErrNotFound)
	}

	c := model.Comment{
		ID:            uuid.New().String(),
		VozID:         vozID,
		UserID:        author.ID,
		UserName:      author.Name,
		UserAvatarURL: author.AvatarURL,
		Text:          text,
		CreatedAt:     s.now().UTC(),
	}
	next := cur.Clone()
	next.Comments = append(next.Comments, c)
	next.CommentsCount = len(next.Comments)
	if err := s.persist(ctx, "comment", next); err != nil {
		return nil, err
	}
	s.posts[vozID] = next
	return &c, nil
}

func (s *Service) persist(ctx context.Context, op string, v *model.Voz) error {
	stored := v.Clone()
	stored.IsLiked = false
	if err := s.docs.Set(ctx, model.CollectionVoces, v.ID, stored); err != nil {
		return &apperr.PersistenceError{Op: op, Collection: model.CollectionVoces, ID: v.ID, Err: err}
	}
	return nil
}

// Feed 为 viewer 组装动态流；viewer 为 nil 时按时间倒序返回全部
func (s *Service) Feed(viewer *model.User) []*model.Voz {
	var following []string
	viewerID := ""
	if viewer != nil {
		following = viewer.Following
		viewerID = viewer.ID
	}

	s.mu.RLock()
	all := make([]*model.Voz, 0, len(s.posts))
	for _, v := range s.posts {
		all = append(all, v.ForViewer(viewerID))
	}
	s.mu.RUnlock()

	return Compose(following, all)
}

// ByAuthor 某用户发布的动态，按时间倒序
func (s *Service) ByAuthor(authorID, viewerID string) []*model.Voz {
	s.mu.RLock()
	mine := make([]*model.Voz, 0)
	for _, v := range s.posts {
		if v.UserID == authorID {
			mine = append(mine, v.ForViewer(viewerID))
		}
	}
	s.mu.RUnlock()
	return Compose(nil, mine)
}

func (s *Service) Get(vozID, viewerID string) (*model.Voz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.posts[vozID]
	if !ok {
		return nil, fmt.Errorf("voz %s: %w", vozID, apperr.ErrNotFound)
	}
	return v.ForViewer(viewerID), nil
}

// Comments 按发表顺序返回评论
func (s *Service) Comments(vozID string) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.posts[vozID]
	if !ok {
		return nil, fmt.Errorf("voz %s: %w", vozID, apperr.ErrNotFound)
	}
	return slices.Clone(v.Comments), nil
}
