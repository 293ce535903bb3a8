// Package session holds the per-client context: who is signed in, whether
// the first auth callback has arrived, which view the client is on, and the
// session's profile mirror and message cache.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/auth"
	"github.com/d60-Lab/friendlyvoice/internal/messaging"
	"github.com/d60-Lab/friendlyvoice/internal/mirror"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/social"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

// Deps are the collaborators of a Session.
type Deps struct {
	Provider auth.Provider
	Docs     repository.DocumentRepository
	Mirror   mirror.Mirror
	Graph    *social.Graph
	Messages *messaging.Store
}

// State is a consistent snapshot of a Session.
type State struct {
	ID       string      `json:"id"`
	Identity *model.User `json:"identity"`
	Loading  bool        `json:"loading"`
	View     View        `json:"view"`
}

type Session struct {
	id       string
	provider auth.Provider
	docs     repository.DocumentRepository
	mirror   mirror.Mirror
	graph    *social.Graph
	messages *messaging.Store
	nav      *Navigator

	mu          sync.Mutex
	identity    *model.User
	loading     bool
	unsubscribe func()
	lastSeen    time.Time
}

// New returns a session that is loading until Start delivers the first
// auth callback.
func New(id string, d Deps) *Session {
	return &Session{
		id:       id,
		provider: d.Provider,
		docs:     d.Docs,
		mirror:   d.Mirror,
		graph:    d.Graph,
		messages: d.Messages,
		nav:      NewNavigator(ViewLogin),
		loading:  true,
		lastSeen: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Start subscribes to the provider. The callback runs once before Start
// returns.
func (s *Session) Start(ctx context.Context) {
	unsub := s.provider.Subscribe(ctx, s.handleAuthState)
	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()
}

// Close unsubscribes and drops cached state.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.identity = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.mirror.Clear(ctx)
	s.messages.Reset()
}

// handleAuthState 认证状态回调：加载或创建资料，然后应用路由
func (s *Session) handleAuthState(ctx context.Context, ident *auth.Identity) {
	if ident == nil {
		s.mu.Lock()
		s.identity = nil
		s.loading = false
		s.mu.Unlock()
		s.mirror.Clear(ctx)
		s.messages.Reset()
		s.applyRoute()
		return
	}

	profile := s.loadProfile(ctx, ident)
	if profile != nil {
		s.mirror.Put(ctx, profile)
		s.hydrate(ctx, profile)
	}

	s.mu.Lock()
	s.identity = profile
	s.loading = false
	s.mu.Unlock()
	s.applyRoute()
}

func (s *Session) loadProfile(ctx context.Context, ident *auth.Identity) *model.User {
	var stored model.User
	err := s.docs.Get(ctx, model.CollectionUsers, ident.ID, &stored)
	switch {
	case err == nil:
		stored.ID = ident.ID
		stored.Email = ident.Email
		stored.EmailVerified = ident.EmailVerified
		return &stored
	case apperr.IsNotFound(err):
		u := model.NewDefaultUser(ident.ID, ident.Email)
		u.EmailVerified = ident.EmailVerified
		if err := s.docs.Set(ctx, model.CollectionUsers, u.ID, u); err != nil {
			logger.Error("persist default profile failed", zap.String("user", u.ID), zap.Error(err))
		}
		return u
	default:
		logger.Error("load profile failed", zap.String("user", ident.ID), zap.Error(err))
		return nil
	}
}

// hydrate 将关注的用户资料读入镜像；缺失的跳过
func (s *Session) hydrate(ctx context.Context, u *model.User) {
	for _, id := range u.Following {
		if _, err := mirror.ReadThrough(ctx, s.mirror, s.docs, id); err != nil {
			logger.Warn("skip followed profile", zap.String("user", u.ID), zap.String("followed", id), zap.Error(err))
		}
	}
}

func (s *Session) applyRoute() {
	s.mu.Lock()
	loading := s.loading
	u := s.identity
	s.mu.Unlock()
	if loading {
		return
	}
	if target, redirect := Decide(u, s.nav.Current()); redirect {
		s.nav.Navigate(target)
	}
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Signup 创建凭据、发送验证邮件、写入资料，然后登录
func (s *Session) Signup(ctx context.Context, email, password, name, dateOfBirth string) (*model.User, error) {
	s.setLoading(true)
	fail := func(err error) (*model.User, error) {
		s.setLoading(false)
		return nil, apperr.NewAuthError(err)
	}

	ident, err := s.provider.CreateCredential(ctx, email, password)
	if err != nil {
		return fail(err)
	}
	if err := s.provider.SendVerificationEmail(ctx, ident); err != nil {
		return fail(err)
	}

	profile := model.NewDefaultUser(ident.ID, ident.Email)
	if name != "" {
		profile.Name = name
	}
	profile.DateOfBirth = dateOfBirth
	profile.EmailVerified = ident.EmailVerified
	if err := s.docs.Set(ctx, model.CollectionUsers, profile.ID, profile); err != nil {
		return fail(&apperr.PersistenceError{Op: "signup", Collection: model.CollectionUsers, ID: profile.ID, Err: err})
	}

	if _, err := s.provider.VerifyCredential(ctx, email, password); err != nil {
		return fail(err)
	}
	return s.signedIn()
}

// Login 登录；身份由回调设置
func (s *Session) Login(ctx context.Context, email, password string) (*model.User, error) {
	s.setLoading(true)
	if _, err := s.provider.VerifyCredential(ctx, email, password); err != nil {
		s.setLoading(false)
		return nil, apperr.NewAuthError(err)
	}
	return s.signedIn()
}

// signedIn 回调未能加载资料时身份为空
func (s *Session) signedIn() (*model.User, error) {
	if u := s.Identity(); u != nil {
		return u, nil
	}
	return nil, &apperr.AuthError{Message: "signed in but the profile could not be loaded"}
}

// Logout 退出登录并清空缓存
func (s *Session) Logout(ctx context.Context) error {
	s.setLoading(true)
	if err := s.provider.SignOut(ctx); err != nil {
		s.setLoading(false)
		return apperr.NewAuthError(err)
	}
	s.mu.Lock()
	s.identity = nil
	s.loading = false
	s.mu.Unlock()
	s.mirror.Clear(ctx)
	s.messages.Reset()
	s.nav.Navigate(ViewLogin)
	return nil
}

// Refresh 重新读取认证身份（例如邮箱验证之后）
func (s *Session) Refresh(ctx context.Context) (*model.User, error) {
	ident, err := s.provider.Reload(ctx)
	if err != nil {
		return nil, err
	}
	s.handleAuthState(ctx, ident)
	return s.Identity(), nil
}

func (s *Session) requireIdentity() (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	return s.identity.Clone(), nil
}

// applyFields 先写文档，再以相同的浅合并更新内存与镜像
func (s *Session) applyFields(ctx context.Context, op string, fields map[string]any) (*model.User, error) {
	cur, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return cur, nil
	}
	if err := s.docs.UpdatePartial(ctx, model.CollectionUsers, cur.ID, fields); err != nil {
		return nil, &apperr.PersistenceError{Op: op, Collection: model.CollectionUsers, ID: cur.ID, Err: err}
	}

	s.mu.Lock()
	if s.identity == nil || s.identity.ID != cur.ID {
		s.mu.Unlock()
		return nil, apperr.ErrNotAuthenticated
	}
	updated, err := s.identity.ApplyFields(fields)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.identity = updated
	s.mu.Unlock()

	s.mirror.Put(ctx, updated)
	return updated.Clone(), nil
}

func (s *Session) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error) {
	return s.applyFields(ctx, "update profile", upd.Fields())
}

func (s *Session) UpdateAvatar(ctx context.Context, avatarURL string) (*model.User, error) {
	return s.applyFields(ctx, "update avatar", map[string]any{"avatarUrl": avatarURL})
}

// CompleteOnboarding 保存引导数据并跳转到个人资料页
func (s *Session) CompleteOnboarding(ctx context.Context, o model.Onboarding) (*model.User, error) {
	u, err := s.applyFields(ctx, "complete onboarding", map[string]any{
		"hobbies":            o.Hobbies,
		"bioSoundUrl":        o.BioSoundURL,
		"avatarUrl":          o.AvatarURL,
		"onboardingComplete": true,
	})
	if err != nil {
		return nil, err
	}
	s.nav.Navigate(ViewProfile)
	return u, nil
}

// Follow 关注用户；部分失败时仍返回更新后的身份与错误
func (s *Session) Follow(ctx context.Context, targetID string) (*model.User, error) {
	cur, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	updated, err := s.graph.Follow(ctx, s.mirror, cur, targetID)
	return s.adoptFollowing(updated), err
}

func (s *Session) Unfollow(ctx context.Context, targetID string) (*model.User, error) {
	cur, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	updated, err := s.graph.Unfollow(ctx, s.mirror, cur, targetID)
	return s.adoptFollowing(updated), err
}

func (s *Session) adoptFollowing(updated *model.User) *model.User {
	if updated == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil && s.identity.ID == updated.ID {
		s.identity.Following = updated.Following
		return s.identity.Clone()
	}
	return updated
}

func (s *Session) IsFollowing(targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return social.IsFollowing(s.identity, targetID)
}

func (s *Session) MutualFollows(ctx context.Context) []*model.User {
	return s.graph.MutualFollows(ctx, s.mirror, s.Identity())
}

// GetUserByID 读穿查询用户资料
func (s *Session) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.graph.Lookup(ctx, s.mirror, id)
}

func (s *Session) SendMessage(ctx context.Context, recipientID, voiceURL string) (*model.Message, error) {
	cur, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	return s.messages.Send(ctx, cur.ID, recipientID, voiceURL)
}

// Messages 返回与 partnerID 的会话（本会话缓存）
func (s *Session) Messages(partnerID string) ([]model.Message, error) {
	cur, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	return s.messages.Messages(cur.ID, partnerID), nil
}

// LoadMessages 从存储补全与 partnerID 的会话
func (s *Session) LoadMessages(ctx context.Context, partnerID string) ([]model.Message, error) {
	cur, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	return s.messages.Load(ctx, cur.ID, partnerID)
}

func (s *Session) Conversations() ([]model.Chat, error) {
	cur, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}
	return s.messages.Conversations(cur.ID), nil
}

// SetView 切换视图后重新应用路由，返回最终视图
func (s *Session) SetView(v View) View {
	s.nav.Navigate(v)
	s.applyRoute()
	return s.nav.Current()
}

func (s *Session) View() View { return s.nav.Current() }

// Identity 当前身份的副本，未登录时为 nil
func (s *Session) Identity() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Clone()
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) State() State {
	s.mu.Lock()
	st := State{ID: s.id, Identity: s.identity.Clone(), Loading: s.loading}
	s.mu.Unlock()
	st.View = s.nav.Current()
	return st
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
