package credits

import (
	"context"
	"sync"
)

type fakeStore struct {
	mu       sync.Mutex
	balances map[string]int
	events   map[string]bool
	err      error
}

func newFakeStore(balances map[string]int) *fakeStore {
	return &fakeStore{balances: balances, events: make(map[string]bool)}
}

func (s *fakeStore) ChargeOne(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.balances[email] < 1 {
		return false, nil
	}
	s.balances[email]--
	return true, nil
}

func (s *fakeStore) RefundOne(ctx context.Context, email string) error {
	return s.TopUp(ctx, email, 1)
}

func (s *fakeStore) TopUp(_ context.Context, email string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.balances[email]; !ok {
		return ErrUserNotFound
	}
	s.balances[email] += amount
	return nil
}

func (s *fakeStore) ApplyPurchase(_ context.Context, eventID, email string, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events[eventID] {
		return false, nil
	}
	if _, ok := s.balances[email]; !ok {
		return false, ErrUserNotFound
	}
	s.events[eventID] = true
	s.balances[email] += amount
	return true, nil
}

func (s *fakeStore) Balance(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[email]
	if !ok {
		return 0, ErrUserNotFound
	}
	return b, nil
}
