package store

import (
	"context"
	"slices"
)

// Store gives typed access to the documents on a Backend.
//
// Every mutating method is a whole-document read-modify-write. Callers are
// expected to run in a single process; concurrent writers to the same
// document are last-write-wins.
type Store struct {
	backend Backend
}

// New creates a Store over the given backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// --- Schedule config ---

// LoadConfig returns the normalized schedule config.
func (s *Store) LoadConfig(ctx context.Context) LoadResult[ScheduleConfig] {
	res := Load(ctx, s.backend, DocConfig, DefaultScheduleConfig)
	res.Value = res.Value.Normalize()
	return res
}

// SaveConfig normalizes and replaces the schedule config, returning what was stored.
func (s *Store) SaveConfig(ctx context.Context, cfg ScheduleConfig) (ScheduleConfig, error) {
	cfg = cfg.Normalize()
	return cfg, Save(ctx, s.backend, DocConfig, cfg)
}

// --- Posted ledger ---

// LoadPosted returns the posted-id ledger.
func (s *Store) LoadPosted(ctx context.Context) LoadResult[PostedIDs] {
	res := Load(ctx, s.backend, DocPosted, func() PostedIDs { return PostedIDs{} })
	if res.Value == nil {
		res.Value = PostedIDs{}
	}
	return res
}

// MarkPosted adds ids to the ledger in one write.
func (s *Store) MarkPosted(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	posted := s.LoadPosted(ctx).Value
	posted.Add(ids...)
	return Save(ctx, s.backend, DocPosted, posted)
}

// UnmarkPosted removes an id so the photo can be selected again.
func (s *Store) UnmarkPosted(ctx context.Context, id string) error {
	posted := s.LoadPosted(ctx).Value
	delete(posted, id)
	return Save(ctx, s.backend, DocPosted, posted)
}

// --- Pending queue ---

// LoadPending returns the approval queue in insertion order.
func (s *Store) LoadPending(ctx context.Context) LoadResult[[]PendingPost] {
	res := Load(ctx, s.backend, DocPending, func() []PendingPost { return []PendingPost{} })
	if res.Value == nil {
		res.Value = []PendingPost{}
	}
	return res
}

// SavePending replaces the approval queue.
func (s *Store) SavePending(ctx context.Context, posts []PendingPost) error {
	if posts == nil {
		posts = []PendingPost{}
	}
	return Save(ctx, s.backend, DocPending, posts)
}

// AppendPending adds a post to the end of the queue.
func (s *Store) AppendPending(ctx context.Context, post PendingPost) error {
	pending := s.LoadPending(ctx).Value
	return s.SavePending(ctx, append(pending, post))
}

// RemovePending drops the post with the given id. It reports whether the
// post was present; nothing is written when it was not.
func (s *Store) RemovePending(ctx context.Context, id string) (bool, error) {
	pending := s.LoadPending(ctx).Value
	kept := slices.DeleteFunc(slices.Clone(pending), func(p PendingPost) bool { return p.ID == id })
	if len(kept) == len(pending) {
		return false, nil
	}
	return true, s.SavePending(ctx, kept)
}

// FindPending returns the post with the given id.
func (s *Store) FindPending(ctx context.Context, id string) (PendingPost, bool) {
	for _, p := range s.LoadPending(ctx).Value {
		if p.ID == id {
			return p, true
		}
	}
	return PendingPost{}, false
}

// --- History ---

// LoadHistory returns history newest first.
func (s *Store) LoadHistory(ctx context.Context) LoadResult[[]HistoryEntry] {
	res := Load(ctx, s.backend, DocHistory, func() []HistoryEntry { return []HistoryEntry{} })
	if res.Value == nil {
		res.Value = []HistoryEntry{}
	}
	return res
}

// AppendHistory prepends an entry so the log stays newest first.
func (s *Store) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	history := s.LoadHistory(ctx).Value
	history = slices.Insert(history, 0, entry)
	return Save(ctx, s.backend, DocHistory, history)
}

// --- Location cache ---

// LoadLocations returns the location cache.
func (s *Store) LoadLocations(ctx context.Context) LoadResult[LocationCache] {
	res := Load(ctx, s.backend, DocLocations, func() LocationCache { return LocationCache{} })
	if res.Value == nil {
		res.Value = LocationCache{}
	}
	return res
}

// SaveLocations replaces the location cache.
func (s *Store) SaveLocations(ctx context.Context, cache LocationCache) error {
	return Save(ctx, s.backend, DocLocations, cache)
}

// --- Publish token ---

// LoadToken returns the stored publish token.
func (s *Store) LoadToken(ctx context.Context) LoadResult[TokenState] {
	return Load(ctx, s.backend, DocToken, func() TokenState { return TokenState{} })
}

// SaveToken replaces the stored publish token.
func (s *Store) SaveToken(ctx context.Context, t TokenState) error {
	return Save(ctx, s.backend, DocToken, t)
}
