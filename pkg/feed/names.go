package feed

import (
	"context"
	"sync"

	"github.com/mahaj/chat-feed/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Placeholder is shown for a peer whose name has not been resolved.
const Placeholder = "Loading..."

// NameCache maps user ids to display names. Entries are never overwritten
// once set, so a rename is not picked up for the rest of the session.
type NameCache map[string]string

// Name returns the cached name for id or Placeholder.
func (c NameCache) Name(id string) string {
	if n, ok := c[id]; ok {
		return n
	}
	return Placeholder
}

// Missing returns the distinct non-empty ids not present in the cache.
func (c NameCache) Missing(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := c[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Merge returns a copy of c with the entries of add that c does not have yet.
func (c NameCache) Merge(add NameCache) NameCache {
	out := make(NameCache, len(c)+len(add))
	for id, n := range c {
		out[id] = n
	}
	for id, n := range add {
		if _, ok := out[id]; !ok {
			out[id] = n
		}
	}
	return out
}

// LookupFunc fetches a user profile; it is called once per uncached id.
type LookupFunc func(ctx context.Context, id string) (model.UserProfile, error)

// Resolver fills a NameCache from a LookupFunc with bounded concurrency.
type Resolver struct {
	lookup      LookupFunc
	concurrency int
	log         *zap.Logger
}

// NewResolver returns a Resolver; concurrency <= 0 means 8 lookups at a time.
func NewResolver(lookup LookupFunc, concurrency int, log *zap.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{lookup: lookup, concurrency: concurrency, log: log}
}

// ResolveNames looks up every id in peerIDs missing from cache, concurrently,
// and returns cache merged with the names that resolved. A failed lookup
// leaves its id out; it is not retried and does not affect the others. The
// input cache is not modified. No lookups start once ctx is done.
func (r *Resolver) ResolveNames(ctx context.Context, peerIDs []string, cache NameCache) NameCache {
	missing := cache.Missing(peerIDs)
	if len(missing) == 0 {
		return cache.Merge(nil)
	}

	var (
		mu       sync.Mutex
		resolved = make(NameCache, len(missing))
		g        errgroup.Group
	)
	g.SetLimit(r.concurrency)

	for _, id := range missing {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			u, err := r.lookup(ctx, id)
			if err != nil {
				r.log.Debug("name lookup failed", zap.String("user_id", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			resolved[id] = u.DisplayName()
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return cache.Merge(resolved)
}

// ResolveNames is Resolver.ResolveNames with default settings.
func ResolveNames(ctx context.Context, peerIDs []string, cache NameCache, lookup LookupFunc) NameCache {
	return NewResolver(lookup, 0, nil).ResolveNames(ctx, peerIDs, cache)
}
