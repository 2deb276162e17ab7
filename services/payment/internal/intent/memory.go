package intent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
)

// MemoryStore keeps intents in process. Only suitable for a single instance.
type MemoryStore struct {
	mu      sync.Mutex
	intents map[string]domain.PendingIntent
	now     func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		intents: make(map[string]domain.PendingIntent),
		now:     o.now,
	}
}

func (s *MemoryStore) Put(_ context.Context, p domain.PendingIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.intents[p.Token]; ok && !cur.Expired(s.now()) {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, p.Token)
	}
	s.intents[p.Token] = p
	return nil
}

func (s *MemoryStore) TakeIfPresent(_ context.Context, token string) (domain.PendingIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.intents[token]
	if !ok {
		return domain.PendingIntent{}, ErrNotFound
	}
	delete(s.intents, token)

	if p.Expired(s.now()) {
		return domain.PendingIntent{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for token, p := range s.intents {
		if p.Expired(now) {
			delete(s.intents, token)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intents)
}
