package loaders

import (
	"context"
	"fmt"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains all the dataloaders for the application
type Loaders struct {
	ProfileLoader *dataloader.Loader[string, *entities.Profile]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(profileRepo repositories.ProfileRepository) *Loaders {
	return &Loaders{
		ProfileLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Profile] {
			results := make([]*dataloader.Result[*entities.Profile], len(keys))
			profiles, err := profileRepo.GetByIDs(ctx, keys)

			profileMap := make(map[string]*entities.Profile)
			if err == nil {
				for _, p := range profiles {
					profileMap[p.ID] = p
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.Profile]{Error: err}
				} else if p, ok := profileMap[key]; ok {
					results[i] = &dataloader.Result[*entities.Profile]{Data: p}
				} else {
					results[i] = &dataloader.Result[*entities.Profile]{Error: fmt.Errorf("profile %s not found", key)}
				}
			}
			return results
		}),
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// LoadProfiles resolves many profiles in one batch. Missing profiles are
// absent from the returned map.
func (l *Loaders) LoadProfiles(ctx context.Context, ids []string) map[string]*entities.Profile {
	out := make(map[string]*entities.Profile, len(ids))
	if len(ids) == 0 {
		return out
	}
	profiles, _ := l.ProfileLoader.LoadMany(ctx, ids)()
	for i, p := range profiles {
		if p != nil {
			out[ids[i]] = p
		}
	}
	return out
}
