package ecosystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/internal/repository/repotest"
)

func TestCatalogue(t *testing.T) {
	docs := repository.NewDocumentRepository(repotest.NewDB(t))
	ctx := context.Background()
	for _, e := range []*model.Ecosystem{
		{ID: "1", Name: "Tech", IsActive: true, ParticipantCount: 125},
		{ID: "2", Name: "Books", IsActive: false, ParticipantCount: 400},
		{ID: "3", Name: "Founders", IsActive: true, ParticipantCount: 210},
	} {
		require.NoError(t, docs.Set(ctx, model.CollectionEcosystems, e.ID, e))
	}
	c := NewCatalogue(docs)

	all, err := c.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"3", "1", "2"}, []string{all[0].ID, all[1].ID, all[2].ID})

	active, err := c.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	got, err := c.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Books", got.Name)

	_, err = c.Get(ctx, "9")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
