package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/api/handler"
	"github.com/d60-Lab/friendlyvoice/internal/auth"
	"github.com/d60-Lab/friendlyvoice/internal/ecosystem"
	"github.com/d60-Lab/friendlyvoice/internal/feed"
	"github.com/d60-Lab/friendlyvoice/internal/media"
	"github.com/d60-Lab/friendlyvoice/internal/mirror"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/repository/repotest"
	"github.com/d60-Lab/friendlyvoice/internal/session"
	"github.com/d60-Lab/friendlyvoice/internal/social"
	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

func init() { gin.SetMode(gin.TestMode) }

type linkMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *linkMailer) SendVerification(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[email] = link
	return nil
}

type server struct {
	t      *testing.T
	router *gin.Engine
	mailer *linkMailer
	docs   repository.DocumentRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		Auth:      config.AuthConfig{BcryptCost: bcrypt.MinCost, MinPasswordLen: 6, VerifyTTL: time.Hour},
		Media:     config.MediaConfig{Driver: "inline", MaxPayloadBytes: 1 << 16, ChunkSize: 1024, MIMEType: "audio/webm"},
		Telemetry: config.TelemetryConfig{ServiceName: "friendlyvoice-test"},
	}
	db := repotest.NewDB(t)
	docs := repository.NewDocumentRepository(db)
	mailer := &linkMailer{links: map[string]string{}}
	tokens := auth.NewTokenIssuer("router-test-secret-42")
	backend := auth.NewBackend(repository.NewCredentialRepository(db), tokens, mailer, cfg.Auth)
	graph := social.NewGraph(docs, nil)
	sessions := session.NewManager(session.Options{
		NewProvider: func() auth.Provider { return backend.NewClient() },
		NewMirror:   func(string) (mirror.Mirror, error) { return mirror.NewMemory(time.Minute, 100), nil },
		Docs:        docs,
		Graph:       graph,
		Tokens:      tokens,
		TokenTTL:    time.Hour,
	})
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })

	h := handler.NewHandler(handler.Deps{
		Sessions:   sessions,
		Backend:    backend,
		Feed:       feed.NewService(docs),
		Graph:      graph,
		Ecosystems: ecosystem.NewCatalogue(docs),
		Media:      media.InlineStore{},
		MediaCfg:   cfg.Media,
	})
	r, err := NewRouter(Deps{
		Config:   cfg,
		Handler:  h,
		Sessions: sessions,
		Images:   media.NewHostPolicy([]string{"picsum.photos"}),
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return &server{t: t, router: r, mailer: mailer, docs: docs}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *server) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type sessionData struct {
	Token   string        `json:"token"`
	Session session.State `json:"session"`
}

// onboard signs up, confirms the email and completes onboarding; it returns
// the session token and the user id.
func (s *server) onboard(email, name string) (string, string) {
	t := s.t
	code, env := s.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email": email, "password": "secret123", "name": name, "dateOfBirth": "1995-06-01",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	sd := decode[sessionData](t, env.Data)
	require.NotEmpty(t, sd.Token)
	assert.Equal(t, session.ViewVerifyEmail, sd.Session.View)

	s.mailer.mu.Lock()
	link, err := url.Parse(s.mailer.links[email])
	s.mailer.mu.Unlock()
	require.NoError(t, err)
	code, _ = s.do(http.MethodGet, "/api/v1/auth/verify-email?token="+url.QueryEscape(link.Query().Get("token")), "", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/api/v1/auth/refresh", sd.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.ViewOnboarding, decode[session.State](t, env.Data).View)

	code, env = s.do(http.MethodPost, "/api/v1/me/onboarding", sd.Token, gin.H{
		"hobbies":     []string{"guitarra"},
		"bioSoundUrl": "data:audio/webm;base64,AAEC",
		"avatarUrl":   "https://picsum.photos/seed/" + name + "/200",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	return sd.Token, sd.Session.Identity.ID
}

func TestRouter_HealthAndAuthRequired(t *testing.T) {
	s := newServer(t)

	code, _ := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodGet, "/api/v1/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.CodeUnauthorized, env.Code)

	code, _ = s.do(http.MethodGet, "/api/v1/session", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_SignupValidationAndLogin(t *testing.T) {
	s := newServer(t)

	code, _ := s.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "nope", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "ana@example.com", "password": "123"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, env.Message, "password")

	token, _ := s.onboard("ana@example.com", "Ana")

	code, env = s.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "ana@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "email already in use", env.Message)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ana@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ana@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, code)
	second := decode[sessionData](t, env.Data)
	assert.Equal(t, session.ViewProfile, second.Session.View)
	assert.NotEqual(t, token, second.Token)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/v1/me", second.Token, nil)
	assert.Equal(t, http.StatusOK, code, "other sessions stay signed in")
}

func TestRouter_ProfileAndViews(t *testing.T) {
	s := newServer(t)
	token, _ := s.onboard("ana@example.com", "Ana")

	code, _ := s.do(http.MethodPut, "/api/v1/me/avatar", token, gin.H{"avatarUrl": "https://evil.example.com/a.png"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(http.MethodPut, "/api/v1/me/avatar", token, gin.H{"avatarUrl": "https://picsum.photos/seed/x/200"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://picsum.photos/seed/x/200", decode[model.User](t, env.Data).AvatarURL)

	code, env = s.do(http.MethodPatch, "/api/v1/me", token, gin.H{"bio": "hola", "interests": []string{"podcasts"}})
	require.Equal(t, http.StatusOK, code)
	me := decode[model.User](t, env.Data)
	assert.Equal(t, "hola", me.Bio)
	assert.Equal(t, []string{"guitarra"}, me.Hobbies)
	assert.True(t, strings.HasPrefix(me.BioSoundURL, "data:audio/webm;base64,"))

	code, env = s.do(http.MethodPut, "/api/v1/session/view", token, gin.H{"view": "login"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.ViewProfile, decode[session.State](t, env.Data).View)

	code, env = s.do(http.MethodPut, "/api/v1/session/view", token, gin.H{"view": "messages"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.ViewMessages, decode[session.State](t, env.Data).View)

	code, _ = s.do(http.MethodPut, "/api/v1/session/view", token, gin.H{"view": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouter_SocialMessagesAndFeed(t *testing.T) {
	s := newServer(t)
	ana, anaID := s.onboard("ana@example.com", "Ana")
	beto, betoID := s.onboard("beto@example.com", "Beto")

	code, _ := s.do(http.MethodPost, "/api/v1/relations/"+anaID+"/follow", ana, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodPost, "/api/v1/relations/"+betoID+"/follow", ana, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/v1/relations/"+anaID+"/follow", beto, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(http.MethodGet, "/api/v1/relations/"+betoID+"/status", ana, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[map[string]any](t, env.Data)["following"].(bool))

	code, env = s.do(http.MethodGet, "/api/v1/relations/mutual", beto, nil)
	require.Equal(t, http.StatusOK, code)
	mutual := decode[[]model.User](t, env.Data)
	require.Len(t, mutual, 1)
	assert.Equal(t, anaID, mutual[0].ID)

	code, env = s.do(http.MethodGet, "/api/v1/relations/"+anaID+"/followers?page=1&page_size=5", beto, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[struct {
		List []string `json:"list"`
	}](t, env.Data)
	assert.Equal(t, []string{betoID}, page.List)

	code, env = s.do(http.MethodPost, "/api/v1/messages/"+betoID, ana, gin.H{"voiceUrl": "data:audio/webm;base64,AAEC"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	sent := decode[model.Message](t, env.Data)

	code, env = s.do(http.MethodGet, "/api/v1/messages/"+anaID, beto, nil)
	require.Equal(t, http.StatusOK, code)
	thread := decode[[]model.Message](t, env.Data)
	require.Len(t, thread, 1)
	assert.Equal(t, sent.ID, thread[0].ID)

	code, env = s.do(http.MethodGet, "/api/v1/messages", beto, nil)
	require.Equal(t, http.StatusOK, code)
	chats := decode[[]model.Chat](t, env.Data)
	require.Len(t, chats, 1)
	assert.Equal(t, 1, chats[0].UnreadCount)

	code, env = s.do(http.MethodPost, "/api/v1/voces", ana, gin.H{"audioUrl": "https://cdn.example/v.webm", "caption": "hola"})
	require.Equal(t, http.StatusCreated, code)
	voz := decode[model.Voz](t, env.Data)

	code, env = s.do(http.MethodPost, "/api/v1/voces/"+voz.ID+"/like", beto, nil)
	require.Equal(t, http.StatusOK, code)
	liked := decode[model.Voz](t, env.Data)
	assert.True(t, liked.IsLiked)
	assert.Equal(t, 1, liked.LikesCount)

	code, _ = s.do(http.MethodPost, "/api/v1/voces/"+voz.ID+"/comments", beto, gin.H{"text": "¡genial!"})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.do(http.MethodGet, "/api/v1/feed", beto, nil)
	require.Equal(t, http.StatusOK, code)
	posts := decode[[]model.Voz](t, env.Data)
	require.Len(t, posts, 1)
	assert.Equal(t, 1, posts[0].CommentsCount)
	assert.True(t, posts[0].IsLiked)

	code, _ = s.do(http.MethodGet, "/api/v1/voces/missing", beto, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(http.MethodGet, "/api/v1/ecosystems", beto, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]model.Ecosystem](t, env.Data))
}

func TestRouter_UploadRecording(t *testing.T) {
	s := newServer(t)
	token, _ := s.onboard("ana@example.com", "Ana")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings", bytes.NewReader([]byte("opus-bytes")))
	req.Header.Set("Content-Type", "audio/ogg")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	data := decode[map[string]string](t, env.Data)
	assert.Equal(t, "audio/ogg", data["mimeType"])
	assert.True(t, strings.HasPrefix(data["url"], "data:audio/ogg;base64,"))

	big := httptest.NewRequest(http.MethodPost, "/api/v1/recordings", bytes.NewReader(make([]byte, 1<<17)))
	big.Header.Set("Content-Type", "audio/webm")
	big.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, big)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodGet, "/healthz", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "friendlyvoice_http_requests_total")
	assert.Contains(t, w.Body.String(), "friendlyvoice_sessions_active")
}
