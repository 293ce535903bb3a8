package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/auth"
	"github.com/d60-Lab/friendlyvoice/internal/messaging"
	"github.com/d60-Lab/friendlyvoice/internal/mirror"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/social"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

// Options configure a Manager.
type Options struct {
	NewProvider func() auth.Provider
	NewMirror   func(namespace string) (mirror.Mirror, error)
	Docs        repository.DocumentRepository
	Graph       *social.Graph
	Tokens      *auth.TokenIssuer
	TokenTTL    time.Duration
	IdleTimeout time.Duration
}

// Manager 管理 HTTP 客户端对应的会话：创建、令牌签发与解析、空闲回收
type Manager struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts Options) *Manager {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 24 * time.Hour
	}
	return &Manager{opts: opts, now: time.Now, sessions: map[string]*Session{}}
}

// Open 创建并启动一个新会话（初始为未登录）
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	mir, err := m.opts.NewMirror(id)
	if err != nil {
		return nil, fmt.Errorf("create mirror: %w", err)
	}
	s := New(id, Deps{
		Provider: m.opts.NewProvider(),
		Docs:     m.opts.Docs,
		Mirror:   mir,
		Graph:    m.opts.Graph,
		Messages: messaging.NewStore(m.opts.Docs),
	})
	s.touch(m.now())
	s.Start(ctx)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Issue 为已登录会话签发令牌
func (m *Manager) Issue(s *Session) (string, time.Time, error) {
	u := s.Identity()
	if u == nil {
		return "", time.Time{}, apperr.ErrNotAuthenticated
	}
	token, err := m.opts.Tokens.Issue(auth.PurposeSession, u.ID, s.ID(), m.opts.TokenTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, m.now().Add(m.opts.TokenTTL), nil
}

// Resolve 由令牌找到会话；会话不存在、已登出或身份不符时返回 ErrNotAuthenticated
func (m *Manager) Resolve(token string) (*Session, error) {
	claims, err := m.opts.Tokens.Parse(token, auth.PurposeSession)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrNotAuthenticated, err)
	}
	m.mu.RLock()
	s, ok := m.sessions[claims.SessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}
	u := s.Identity()
	if u == nil || u.ID != claims.UserID {
		return nil, apperr.ErrNotAuthenticated
	}
	s.touch(m.now())
	return s, nil
}

// Close 关闭并移除会话
func (m *Manager) Close(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close(ctx)
	}
}

// Sweep 关闭空闲超时的会话，返回关闭数量
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.opts.IdleTimeout)
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close(ctx)
	}
	if len(idle) > 0 {
		logger.Info("swept idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// StartSweeper 周期性回收空闲会话，返回停止函数
func (m *Manager) StartSweeper(interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	stopCh := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				m.Sweep(context.Background())
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { once.Do(func() { close(stopCh) }) }
}

// CloseAll 关闭全部会话（进程退出时）
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, s := range all {
		s.Close(ctx)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
