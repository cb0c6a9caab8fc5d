package session

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

type MemoryStore struct {
	mu      sync.Mutex
	session *domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.Session{}, domain.WrapError(domain.ErrNoSession, "load session", errors.New("no session stored"))
	}
	return *s.session, nil
}

func (s *MemoryStore) Save(_ context.Context, sess domain.Session) error {
	if _, err := encode(sess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sess
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
