package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/conversation"
)

// MemoryStore holds conversations in memory, cloning on the way in and out so
// callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation.Conversation
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*conversation.Conversation),
	}
}

func (s *MemoryStore) List() ([]ChatInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ChatInfo, 0, len(s.conversations))
	for _, c := range s.conversations {
		infos = append(infos, infoFor(c))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

func (s *MemoryStore) Get(id string) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, errors.Wrapf(ErrConversationNotFound, "chat %s", id)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Put(c *conversation.Conversation) error {
	if c.ID == "" {
		return errors.New("conversation has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return errors.Wrapf(ErrConversationNotFound, "chat %s", id)
	}
	delete(s.conversations, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
