// Package search keeps an in-memory index of catalog titles for
// substring search and shuffle sampling. The index rebuilds from a
// catalog snapshot and swaps in atomically; queries never observe a
// half-built state.
package search

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"harmonium/internal/catalog"
	"harmonium/internal/logging"
	"harmonium/internal/metrics"
)

// Results groups matches by entity kind, best matches first.
type Results struct {
	Artists []Match `json:"artists"`
	Albums  []Match `json:"albums"`
	Tracks  []Match `json:"tracks"`
}

// Match is one search hit.
type Match struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// snapshot is one immutable generation of the index.
type snapshot struct {
	generation int64
	entries    []catalog.IndexEntry
	trackIDs   []string
}

// Index answers searches against the most recently built snapshot.
type Index struct {
	cat *catalog.Catalog

	mu   sync.RWMutex
	snap snapshot

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(cat *catalog.Catalog) *Index {
	return &Index{
		cat: cat,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Refresh rebuilds the index if the catalog generation moved since the
// last build. The rebuild happens off to the side; queries keep hitting
// the previous snapshot until the swap.
func (idx *Index) Refresh(ctx context.Context) error {
	gen, err := idx.cat.Generation()
	if err != nil {
		return err
	}

	idx.mu.RLock()
	current := idx.snap.generation
	idx.mu.RUnlock()
	if gen == current && idx.snapshotReady() {
		return nil
	}

	start := time.Now()
	entries, err := idx.cat.AllIndexEntries(ctx)
	if err != nil {
		return err
	}
	trackIDs, err := idx.cat.AllTrackIDs(ctx)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Norm != entries[j].Norm {
			return entries[i].Norm < entries[j].Norm
		}
		return entries[i].ID < entries[j].ID
	})

	idx.mu.Lock()
	idx.snap = snapshot{generation: gen, entries: entries, trackIDs: trackIDs}
	idx.mu.Unlock()

	metrics.SearchRebuildsTotal.Inc()
	metrics.SearchRebuildDuration.Set(time.Since(start).Seconds())
	logging.Debug("Search index rebuilt: %d entries, generation %d", len(entries), gen)
	return nil
}

func (idx *Index) snapshotReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snap.entries != nil || idx.snap.generation > 0
}

// Search returns up to limit matches per kind for a case- and
// accent-insensitive substring query. Prefix matches rank ahead of
// interior matches; ties stay alphabetical. An empty query matches
// nothing.
func (idx *Index) Search(query string, limit int) Results {
	norm := catalog.NormalizeName(query)
	if norm == "" {
		return Results{}
	}
	if limit <= 0 {
		limit = 20
	}

	idx.mu.RLock()
	snap := idx.snap
	idx.mu.RUnlock()

	type ranked struct {
		match  Match
		prefix bool
	}
	byKind := map[string][]ranked{}

	for _, e := range snap.entries {
		pos := strings.Index(e.Norm, norm)
		if pos < 0 {
			continue
		}
		byKind[e.Kind] = append(byKind[e.Kind], ranked{
			match:  Match{ID: e.ID, Name: e.Name},
			prefix: pos == 0,
		})
	}

	take := func(kind string) []Match {
		hits := byKind[kind]
		// Entries arrive alphabetically; a stable partition keeps that
		// order within each rank.
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].prefix && !hits[j].prefix
		})
		out := make([]Match, 0, limit)
		for _, h := range hits {
			if len(out) == limit {
				break
			}
			out = append(out, h.match)
		}
		return out
	}

	return Results{
		Artists: take("artist"),
		Albums:  take("album"),
		Tracks:  take("track"),
	}
}

// Shuffle returns n distinct track ids drawn uniformly, or every track
// when fewer than n exist. The order is random.
func (idx *Index) Shuffle(n int) []string {
	idx.mu.RLock()
	ids := idx.snap.trackIDs
	idx.mu.RUnlock()

	if n <= 0 || len(ids) == 0 {
		return nil
	}
	if n > len(ids) {
		n = len(ids)
	}

	// Partial Fisher-Yates over a copy: the first n positions end up a
	// uniform sample without replacement.
	pool := make([]string, len(ids))
	copy(pool, ids)

	idx.rngMu.Lock()
	for i := 0; i < n; i++ {
		j := i + idx.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	idx.rngMu.Unlock()

	return pool[:n]
}

// Generation reports the generation of the current snapshot.
func (idx *Index) Generation() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snap.generation
}
