// Package media resolves opaque file ids to short-lived URLs.
package media

import (
	"context"

	"couplespace/internal/observability"
	"couplespace/internal/store"
)

// Resolver batches temp-URL resolution for one fetch cycle. Resolved
// URLs are lease-limited by the backend and must not be reused across
// cycles, so the resolver holds no state.
type Resolver struct {
	objects store.ObjectStore
}

// NewResolver builds a Resolver over the given object store.
func NewResolver(objects store.ObjectStore) *Resolver {
	return &Resolver{objects: objects}
}

// URLMap resolves the distinct ids among fileIDs with a single round
// trip and returns a fileID -> URL map containing only successful
// entries. Callers look up each record and leave the URL empty when the
// id is absent; a missing URL is a pending state, never an error.
func (r *Resolver) URLMap(ctx context.Context, fileIDs []string) (map[string]string, error) {
	distinct := Dedup(fileIDs)
	if len(distinct) == 0 {
		return map[string]string{}, nil
	}

	resolved, err := r.objects.ResolveTempURLs(ctx, distinct)
	if err != nil {
		observability.IncMediaResolve("error")
		return nil, err
	}

	urls := make(map[string]string, len(resolved))
	for _, file := range resolved {
		if file.Status == store.ResolveStatusOK && file.FileID != "" && file.URL != "" {
			urls[file.FileID] = file.URL
		}
	}
	observability.IncMediaResolve("ok")
	return urls, nil
}

// Dedup returns the distinct non-empty ids of fileIDs in first-seen order.
func Dedup(fileIDs []string) []string {
	seen := make(map[string]struct{}, len(fileIDs))
	distinct := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	return distinct
}
