package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/friendlyvoice/internal/feed"
	"github.com/d60-Lab/friendlyvoice/internal/messaging"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/repository/repotest"
)

func TestDefault_FollowGraphIsSymmetric(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, f.Users)

	profiles := map[string]*model.User{}
	for _, p := range f.Profiles() {
		profiles[p.ID] = p
	}
	for id, p := range profiles {
		assert.NotContains(t, p.Following, id)
		assert.NotContains(t, p.Followers, id)
		for _, target := range p.Following {
			assert.Contains(t, profiles[target].Followers, id, "%s follows %s", id, target)
		}
		for _, follower := range p.Followers {
			assert.Contains(t, profiles[follower].Following, id)
		}
	}
}

func TestParse_RejectsBrokenReferences(t *testing.T) {
	cases := map[string]string{
		"underscore id":   "users:\n  - id: a_b\n",
		"unknown follow":  "users:\n  - id: a\n    following: [ghost]\n",
		"self follow":     "users:\n  - id: a\n    following: [a]\n",
		"unknown author":  "users:\n  - id: a\nvoces:\n  - id: v1\n    user: ghost\n",
		"self message":    "users:\n  - id: a\nmessages:\n  - id: m1\n    from: a\n    to: a\n",
		"duplicate users": "users:\n  - id: a\n  - id: a\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApply_LoadsStores(t *testing.T) {
	db := repotest.NewDB(t)
	docs := repository.NewDocumentRepository(db)
	creds := repository.NewCredentialRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	f, err := Default()
	require.NoError(t, err)
	res, err := Apply(ctx, f, docs, creds, bcrypt.MinCost, now)
	require.NoError(t, err)
	assert.Equal(t, len(f.Users), res.Users)
	assert.Equal(t, 4, res.Ecosystems)

	// a second run overwrites documents and keeps credentials
	_, err = Apply(ctx, f, docs, creds, bcrypt.MinCost, now)
	require.NoError(t, err)

	cred, err := creds.GetByEmail(ctx, "ana.perez@example.com")
	require.NoError(t, err)
	assert.Equal(t, "userAnaP", cred.ID)
	assert.True(t, cred.EmailVerified)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(f.Password)))

	var ana model.User
	require.NoError(t, docs.Get(ctx, model.CollectionUsers, "userAnaP", &ana))
	assert.True(t, ana.OnboardingComplete)
	assert.Contains(t, ana.Followers, "userDemo")

	svc := feed.NewService(docs)
	require.NoError(t, svc.Load(ctx))
	posts := svc.Feed(&ana)
	require.Len(t, posts, 3)
	voz1, err := svc.Get("voz1", "userCarlosL")
	require.NoError(t, err)
	assert.True(t, voz1.IsLiked)
	assert.Equal(t, 2, voz1.CommentsCount)
	assert.True(t, now.Add(-2*time.Hour).Equal(voz1.CreatedAt))

	store := messaging.NewStore(docs)
	msgs, err := store.Load(ctx, "userAnaP", "userCarlosL")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "dm1", msgs[0].ID)
	assert.Equal(t, "dm2", msgs[1].ID)
}
