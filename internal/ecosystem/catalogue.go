// Package ecosystem serves the read-only catalogue of topic voice rooms.
package ecosystem

import (
	"context"
	"fmt"
	"sort"

	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
)

type Catalogue struct {
	docs repository.DocumentRepository
}

func NewCatalogue(docs repository.DocumentRepository) *Catalogue { return &Catalogue{docs: docs} }

// List returns every ecosystem, active rooms first, then by participant
// count. With activeOnly set, inactive rooms are left out.
func (c *Catalogue) List(ctx context.Context, activeOnly bool) ([]*model.Ecosystem, error) {
	raws, err := c.docs.List(ctx, model.CollectionEcosystems)
	if err != nil {
		return nil, fmt.Errorf("list ecosystems: %w", err)
	}
	all, err := repository.DecodeAll[model.Ecosystem](raws)
	if err != nil {
		return nil, fmt.Errorf("decode ecosystems: %w", err)
	}

	out := all[:0]
	for _, e := range all {
		if activeOnly && !e.IsActive {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsActive != out[j].IsActive {
			return out[i].IsActive
		}
		if out[i].ParticipantCount != out[j].ParticipantCount {
			return out[i].ParticipantCount > out[j].ParticipantCount
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Catalogue) Get(ctx context.Context, id string) (*model.Ecosystem, error) {
	var e model.Ecosystem
	if err := c.docs.Get(ctx, model.CollectionEcosystems, id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
