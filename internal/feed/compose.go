// Package feed orders voces for a viewer and owns the shared voz catalogue.
package feed

import (
	"sort"

	"github.com/d60-Lab/friendlyvoice/internal/model"
)

// Compose puts posts by followed authors first, then the rest, each part
// newest first. With nothing followed it is every post newest first. The
// input slice is not modified.
func Compose(following []string, posts []*model.Voz) []*model.Voz {
	followed := make(map[string]struct{}, len(following))
	for _, id := range following {
		followed[id] = struct{}{}
	}

	out := make([]*model.Voz, len(posts))
	copy(out, posts)
	sort.SliceStable(out, func(i, j int) bool {
		_, fi := followed[out[i].UserID]
		_, fj := followed[out[j].UserID]
		if fi != fj {
			return fi
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
