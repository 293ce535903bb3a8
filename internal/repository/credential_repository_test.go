package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository/repotest"
)

func TestCredentialRepository(t *testing.T) {
	repo := NewCredentialRepository(repotest.NewDB(t))
	ctx := context.Background()

	c, err := repo.Create(ctx, " Ana@Example.com ", "hash")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.False(t, c.EmailVerified)

	_, err = repo.Create(ctx, "ana@example.com", "other")
	assert.ErrorIs(t, err, ErrEmailInUse)

	got, err := repo.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	require.NoError(t, repo.MarkVerified(ctx, c.ID))
	got, err = repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)

	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.MarkVerified(ctx, "missing"), apperr.ErrNotFound)
}

func TestCredentialRepository_EnsureIsIdempotent(t *testing.T) {
	repo := NewCredentialRepository(repotest.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Ensure(ctx, &model.Credential{ID: "ana", Email: "Ana@friendlyvoice.dev", PasswordHash: "h1"}))
	require.NoError(t, repo.Ensure(ctx, &model.Credential{ID: "ana", Email: "ana@friendlyvoice.dev", PasswordHash: "h2"}))

	got, err := repo.GetByEmail(ctx, "ana@friendlyvoice.dev")
	require.NoError(t, err)
	assert.Equal(t, "ana", got.ID)
	assert.Equal(t, "h1", got.PasswordHash)
}
