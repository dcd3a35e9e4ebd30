package session

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/rydora/internal/model"
)

// MemoryStore はプロセス内メモリのセッションストア。
// 単一インスタンス構成でのみ使用できる。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	session   model.Session
	expiresAt time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

// Get はセッションのコピーを返す。
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || !m.now().Before(entry.expiresAt) {
		return nil, nil
	}

	s := entry.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return &s, nil
}

// Set はセッションのコピーを保存する。
func (m *MemoryStore) Set(_ context.Context, s *model.Session, ttl time.Duration) error {
	if s == nil || s.ID == "" {
		return ErrInvalidSession
	}

	stored := *s
	if s.User != nil {
		u := *s.User
		stored.User = &u
	}

	m.mu.Lock()
	m.sessions[s.ID] = memoryEntry{session: stored, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete はセッションを削除する。存在しない場合もエラーにしない。
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// PurgeExpired は期限切れのセッションを削除し、削除件数を返す。
func (m *MemoryStore) PurgeExpired(_ context.Context) (int64, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len は保持しているセッション数（期限切れを含む）を返す。
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Purger = (*MemoryStore)(nil)
)
