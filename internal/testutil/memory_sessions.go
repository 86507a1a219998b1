package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/pagination"
)

// MemorySessionStore is an in-memory session/entry store for tests that run
// the full HTTP stack without Postgres.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	entries  map[string][]domain.Entry
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.Session),
		entries:  make(map[string][]domain.Entry),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemorySessionStore) GetByID(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemorySessionStore) ListByOwner(_ context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[domain.Session], error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			all = append(all, sess)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if cursor != nil {
		trimmed := all[:0]
		for _, sess := range all {
			if sess.UpdatedAt.Before(cursor.Timestamp) ||
				(sess.UpdatedAt.Equal(cursor.Timestamp) && sess.ID < cursor.LastID) {
				trimmed = append(trimmed, sess)
			}
		}
		all = trimmed
	}

	hasMore := len(all) > limit
	if hasMore {
		all = all[:limit]
	}
	next := ""
	if hasMore {
		next = pagination.EncodeCursor(all[len(all)-1].ID, all[len(all)-1].UpdatedAt)
	}
	return &pagination.PageResult[domain.Session]{Items: all, Cursor: next, HasMore: hasMore}, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.entries, id)
	return nil
}

func (s *MemorySessionStore) AddEntry(_ context.Context, e *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[e.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.entries[e.SessionID] = append(s.entries[e.SessionID], *e)
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[e.SessionID] = sess
	return nil
}

func (s *MemorySessionStore) ListEntries(_ context.Context, sessionID string) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[sessionID]
	out := make([]domain.Entry, len(entries))
	copy(out, entries)
	return out, nil
}
