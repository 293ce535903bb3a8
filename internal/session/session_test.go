package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/auth"
	"github.com/d60-Lab/friendlyvoice/internal/messaging"
	"github.com/d60-Lab/friendlyvoice/internal/mirror"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/repository/repotest"
	"github.com/d60-Lab/friendlyvoice/internal/social"
)

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

func (m *linkMailer) token(t *testing.T, email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.links[email])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type env struct {
	docs    repository.DocumentRepository
	backend *auth.Backend
	mailer  *linkMailer
	graph   *social.Graph
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := repotest.NewDB(t)
	docs := repository.NewDocumentRepository(db)
	mailer := &linkMailer{links: map[string]string{}}
	backend := auth.NewBackend(
		repository.NewCredentialRepository(db),
		auth.NewTokenIssuer("session-test-secret-123"),
		mailer,
		config.AuthConfig{BcryptCost: bcrypt.MinCost, MinPasswordLen: 6, VerifyURL: "http://localhost/verify"},
	)
	return &env{docs: docs, backend: backend, mailer: mailer, graph: social.NewGraph(docs, nil)}
}

func (e *env) newSession(docs repository.DocumentRepository) *Session {
	if docs == nil {
		docs = e.docs
	}
	s := New("s", Deps{
		Provider: e.backend.NewClient(),
		Docs:     docs,
		Mirror:   mirror.NewMemory(time.Minute, 100),
		Graph:    e.graph,
		Messages: messaging.NewStore(docs),
	})
	s.Start(context.Background())
	return s
}

// onboard walks a new user through signup, email verification and onboarding.
func (e *env) onboard(t *testing.T, s *Session, email, name string) *model.User {
	ctx := context.Background()
	_, err := s.Signup(ctx, email, "secret123", name, "1990-04-02")
	require.NoError(t, err)
	_, err = e.backend.ConfirmEmail(ctx, e.mailer.token(t, email))
	require.NoError(t, err)
	_, err = s.Refresh(ctx)
	require.NoError(t, err)
	u, err := s.CompleteOnboarding(ctx, model.Onboarding{
		Hobbies:     []string{"music"},
		BioSoundURL: "https://cdn/bio.webm",
		AvatarURL:   "https://picsum.photos/200",
	})
	require.NoError(t, err)
	return u
}

func TestSession_StartSignedOut(t *testing.T) {
	e := newEnv(t)
	s := New("s", Deps{
		Provider: e.backend.NewClient(),
		Docs:     e.docs,
		Mirror:   mirror.NewMemory(time.Minute, 10),
		Graph:    e.graph,
		Messages: messaging.NewStore(e.docs),
	})
	assert.True(t, s.Loading())
	s.SetView(ViewFeed)
	assert.Equal(t, ViewFeed, s.View(), "no routing while loading")

	s.Start(context.Background())
	assert.False(t, s.Loading())
	assert.Nil(t, s.Identity())
	assert.Equal(t, ViewLogin, s.View())

	assert.Equal(t, ViewRegister, s.SetView(ViewRegister))
	assert.Equal(t, ViewLogin, s.SetView(ViewMessages))
}

func TestSession_SignupFlow(t *testing.T) {
	e := newEnv(t)
	s := e.newSession(nil)
	ctx := context.Background()

	u, err := s.Signup(ctx, "ana@example.com", "secret123", "Ana", "1990-04-02")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, "1990-04-02", u.DateOfBirth)
	assert.False(t, u.EmailVerified)
	assert.False(t, s.Loading())
	assert.Equal(t, ViewVerifyEmail, s.View())

	var stored model.User
	require.NoError(t, e.docs.Get(ctx, model.CollectionUsers, u.ID, &stored))
	assert.Equal(t, "Ana", stored.Name)

	_, err = e.backend.ConfirmEmail(ctx, e.mailer.token(t, "ana@example.com"))
	require.NoError(t, err)
	u, err = s.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)
	assert.Equal(t, ViewOnboarding, s.View())

	u, err = s.CompleteOnboarding(ctx, model.Onboarding{
		Hobbies:     []string{"guitar"},
		BioSoundURL: "https://cdn/bio.webm",
		AvatarURL:   "https://picsum.photos/200",
	})
	require.NoError(t, err)
	assert.True(t, u.OnboardingComplete)
	assert.Equal(t, []string{"guitar"}, u.Hobbies)
	assert.Equal(t, ViewProfile, s.View())

	require.NoError(t, e.docs.Get(ctx, model.CollectionUsers, u.ID, &stored))
	assert.True(t, stored.OnboardingComplete)
	assert.Equal(t, "https://picsum.photos/200", stored.AvatarURL)
}

func TestSession_SignupFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.onboard(t, e.newSession(nil), "ana@example.com", "Ana")

	s := e.newSession(nil)
	_, err := s.Signup(ctx, "ana@example.com", "secret123", "Other", "2000-01-01")
	var ae *apperr.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "email already in use", ae.Message)
	assert.False(t, s.Loading())
	assert.Nil(t, s.Identity())

	_, err = s.Signup(ctx, "bob@example.com", "123", "Bob", "2000-01-01")
	require.ErrorAs(t, err, &ae)
	raws, err := e.docs.List(ctx, model.CollectionUsers)
	require.NoError(t, err)
	assert.Len(t, raws, 1, "no profile written before the failure point")
}

type brokenDocs struct {
	repository.DocumentRepository
	getErr     error
	setErr     error
	updateErr  error
	updateOnly string
}

func (b brokenDocs) Get(ctx context.Context, coll, id string, out any) error {
	if b.getErr != nil {
		return b.getErr
	}
	return b.DocumentRepository.Get(ctx, coll, id, out)
}

func (b brokenDocs) Set(ctx context.Context, coll, id string, doc any) error {
	if b.setErr != nil {
		return b.setErr
	}
	return b.DocumentRepository.Set(ctx, coll, id, doc)
}

// UpdatePartial fails with updateErr, only for updateOnly when it is set.
func (b brokenDocs) UpdatePartial(ctx context.Context, coll, id string, fields map[string]any) error {
	if b.updateErr != nil && (b.updateOnly == "" || b.updateOnly == id) {
		return b.updateErr
	}
	return b.DocumentRepository.UpdatePartial(ctx, coll, id, fields)
}

func TestSession_SignupPersistFailureIsAuthError(t *testing.T) {
	e := newEnv(t)
	s := e.newSession(brokenDocs{DocumentRepository: e.docs, setErr: errors.New("disk full")})

	_, err := s.Signup(context.Background(), "ana@example.com", "secret123", "Ana", "1990-01-01")
	var ae *apperr.AuthError
	require.ErrorAs(t, err, &ae)
	var pe *apperr.PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.False(t, s.Loading())
	assert.Nil(t, s.Identity())
}

func TestSession_LoginCreatesMissingProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, err := e.backend.NewClient().CreateCredential(ctx, "carla@example.com", "secret123")
	require.NoError(t, err)

	s := e.newSession(nil)
	u, err := s.Login(ctx, "carla@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, id.ID, u.ID)
	assert.Equal(t, "carla", u.Name)
	assert.Equal(t, model.DefaultAvatarURL(id.ID), u.AvatarURL)

	var stored model.User
	require.NoError(t, e.docs.Get(ctx, model.CollectionUsers, id.ID, &stored))
	assert.False(t, stored.OnboardingComplete)

	_, err = s.Login(ctx, "carla@example.com", "wrong-password")
	var ae *apperr.AuthError
	assert.ErrorAs(t, err, &ae)
	assert.False(t, s.Loading())
}

func TestSession_ProfileReadFailureLeavesSignedOut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.backend.NewClient().CreateCredential(ctx, "dan@example.com", "secret123")
	require.NoError(t, err)

	s := e.newSession(brokenDocs{DocumentRepository: e.docs, getErr: errors.New("timeout")})
	_, err = s.Login(ctx, "dan@example.com", "secret123")
	var ae *apperr.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Nil(t, s.Identity())
	assert.False(t, s.Loading())
	assert.Equal(t, ViewLogin, s.View())
}

func TestSession_RequiresIdentity(t *testing.T) {
	e := newEnv(t)
	s := e.newSession(nil)
	ctx := context.Background()
	name := "x"

	_, err := s.UpdateProfile(ctx, model.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	_, err = s.UpdateAvatar(ctx, "https://picsum.photos/1")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	_, err = s.CompleteOnboarding(ctx, model.Onboarding{})
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	_, err = s.Follow(ctx, "u2")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	_, err = s.SendMessage(ctx, "u2", "https://cdn/x.webm")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	_, err = s.Conversations()
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	assert.False(t, s.IsFollowing("u2"))
	assert.Empty(t, s.MutualFollows(ctx))
}

func TestSession_UpdateProfileMergesEverywhere(t *testing.T) {
	e := newEnv(t)
	s := e.newSession(nil)
	ctx := context.Background()
	u := e.onboard(t, s, "ana@example.com", "Ana")

	bio := "hola"
	updated, err := s.UpdateProfile(ctx, model.ProfileUpdate{Bio: &bio, Interests: []string{"jazz"}})
	require.NoError(t, err)
	assert.Equal(t, "hola", updated.Bio)
	assert.Equal(t, "Ana", updated.Name)

	_, err = s.UpdateAvatar(ctx, "https://api.dicebear.com/7.x/personas/svg?seed=z")
	require.NoError(t, err)

	var stored model.User
	require.NoError(t, e.docs.Get(ctx, model.CollectionUsers, u.ID, &stored))
	assert.Equal(t, "hola", stored.Bio)
	assert.Equal(t, []string{"jazz"}, stored.Interests)
	assert.Equal(t, "https://api.dicebear.com/7.x/personas/svg?seed=z", stored.AvatarURL)

	mirrored, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hola", mirrored.Bio)
	assert.Equal(t, stored.AvatarURL, s.Identity().AvatarURL)

	_, err = s.GetUserByID(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSession_Logout(t *testing.T) {
	e := newEnv(t)
	s := e.newSession(nil)
	ctx := context.Background()
	e.onboard(t, s, "ana@example.com", "Ana")
	_, err := s.SendMessage(ctx, "someone", "https://cdn/x.webm")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx))
	assert.Nil(t, s.Identity())
	assert.Equal(t, ViewLogin, s.View())
	assert.Empty(t, s.mirror.All(ctx))
	assert.Empty(t, s.messages.Conversations(""))

	u, err := s.Login(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, u.OnboardingComplete)
	assert.Equal(t, ViewProfile, s.View())
}

// u1 and u2 follow each other, see each other as mutual, and exchange a
// message visible from both sides.
func TestScenario_MutualFollowAndDM(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s1 := e.newSession(nil)
	s2 := e.newSession(nil)
	u1 := e.onboard(t, s1, "uno@example.com", "Uno")
	u2 := e.onboard(t, s2, "dos@example.com", "Dos")

	_, err := s1.Follow(ctx, u2.ID)
	require.NoError(t, err)
	_, err = s2.Follow(ctx, u1.ID)
	require.NoError(t, err)

	// u1 signs in again so its mirror holds u2's current profile
	require.NoError(t, s1.Logout(ctx))
	_, err = s1.Login(ctx, "uno@example.com", "secret123")
	require.NoError(t, err)

	assert.True(t, s1.IsFollowing(u2.ID))
	assert.True(t, s2.IsFollowing(u1.ID))

	mutual1 := s1.MutualFollows(ctx)
	require.Len(t, mutual1, 1)
	assert.Equal(t, u2.ID, mutual1[0].ID)
	mutual2 := s2.MutualFollows(ctx)
	require.Len(t, mutual2, 1)
	assert.Equal(t, u1.ID, mutual2[0].ID)

	sent, err := s1.SendMessage(ctx, u2.ID, "data:audio/webm;base64,AAEC")
	require.NoError(t, err)
	assert.Equal(t, messaging.ConversationID(u1.ID, u2.ID), sent.ChatID)

	fromU1, err := s1.Messages(u2.ID)
	require.NoError(t, err)
	require.Len(t, fromU1, 1)

	fromU2, err := s2.LoadMessages(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, fromU2, 1)
	assert.Equal(t, sent.ID, fromU2[0].ID)
	assert.Equal(t, u1.ID, fromU2[0].SenderID)

	chats, err := s2.Conversations()
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, u1.ID, chats[0].PartnerID)
	assert.Equal(t, 1, chats[0].UnreadCount)

	var stored model.User
	require.NoError(t, e.docs.Get(ctx, model.CollectionUsers, u1.ID, &stored))
	assert.ElementsMatch(t, []string{u2.ID}, stored.Followers)
	assert.ElementsMatch(t, []string{u2.ID}, stored.Following)
}

func TestSession_GetUserByID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1, s2 := e.newSession(nil), e.newSession(nil)
	u1 := e.onboard(t, s1, "lu@example.com", "Lu")
	u2 := e.onboard(t, s2, "mo@example.com", "Mo")

	got, err := s1.GetUserByID(ctx, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mo", got.Name)
	assert.Equal(t, u2.ID, got.ID)

	// served from the mirror once read
	require.NoError(t, e.docs.UpdatePartial(ctx, model.CollectionUsers, u2.ID, map[string]any{"name": "Changed"}))
	got, err = s1.GetUserByID(ctx, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mo", got.Name)

	_, err = s1.GetUserByID(ctx, "ghost")
	assert.True(t, apperr.IsNotFound(err))
	assert.NotEqual(t, u1.ID, u2.ID)
}

func TestSession_UnfollowPartialFailureAdoptsShrunkSet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s1, s2 := e.newSession(nil), e.newSession(nil)
	u1 := e.onboard(t, s1, "nia@example.com", "Nia")
	u2 := e.onboard(t, s2, "oli@example.com", "Oli")
	_, err := s1.Follow(ctx, u2.ID)
	require.NoError(t, err)

	docs := brokenDocs{DocumentRepository: e.docs, updateErr: errors.New("write timeout"), updateOnly: u2.ID}
	s := New("s3", Deps{
		Provider: e.backend.NewClient(),
		Docs:     docs,
		Mirror:   mirror.NewMemory(time.Minute, 100),
		Graph:    social.NewGraph(docs, nil),
		Messages: messaging.NewStore(docs),
	})
	s.Start(ctx)
	_, err = s.Login(ctx, "nia@example.com", "secret123")
	require.NoError(t, err)
	require.True(t, s.IsFollowing(u2.ID))

	got, err := s.Unfollow(ctx, u2.ID)
	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Diverged)
	require.NotNil(t, got)
	assert.Empty(t, got.Following)
	assert.False(t, s.IsFollowing(u2.ID))
	assert.Empty(t, s.Identity().Following)

	var stored model.User
	require.NoError(t, e.docs.Get(ctx, model.CollectionUsers, u1.ID, &stored))
	assert.Empty(t, stored.Following)
	require.NoError(t, e.docs.Get(ctx, model.CollectionUsers, u2.ID, &stored))
	assert.Equal(t, []string{u1.ID}, stored.Followers)
}

func TestSession_MutualFollowsSurvivesMirrorExpiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.onboard(t, e.newSession(nil), "pia@example.com", "Pia")
	s2 := e.newSession(nil)
	u2 := e.onboard(t, s2, "quin@example.com", "Quin")
	_, err := s2.Follow(ctx, u1.ID)
	require.NoError(t, err)

	s := New("short", Deps{
		Provider: e.backend.NewClient(),
		Docs:     e.docs,
		Mirror:   mirror.NewMemory(50*time.Millisecond, 100),
		Graph:    e.graph,
		Messages: messaging.NewStore(e.docs),
	})
	s.Start(ctx)
	_, err = s.Login(ctx, "pia@example.com", "secret123")
	require.NoError(t, err)
	_, err = s.Follow(ctx, u2.ID)
	require.NoError(t, err)
	require.Len(t, s.MutualFollows(ctx), 1)

	time.Sleep(100 * time.Millisecond)
	mutual := s.MutualFollows(ctx)
	require.Len(t, mutual, 1)
	assert.Equal(t, u2.ID, mutual[0].ID)
}
