package storefake

import (
	"sync"

	"github.com/seva-trust/donorportal/session/credentials"
	"github.com/seva-trust/donorportal/token"
)

var _ credentials.Store = (*Store)(nil)

// Store is an in-memory credentials.Store that records how many times each
// mutation was called.
type Store struct {
	lock sync.Mutex

	pair token.Pair

	SetPairCalls   int
	SetAccessCalls int
	ClearCalls     int
}

func NewStore() *Store {
	return &Store{}
}

// NewStoreWith returns a fake pre-loaded with the given pair.
func NewStoreWith(p token.Pair) *Store {
	return &Store{pair: p}
}

func (s *Store) AccessToken() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pair.Access
}

func (s *Store) RefreshToken() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pair.Refresh
}

func (s *Store) SetPair(p token.Pair) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair = p
	s.SetPairCalls++
}

func (s *Store) SetAccess(access string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair.Access = access
	s.SetAccessCalls++
}

func (s *Store) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair = token.Pair{}
	s.ClearCalls++
}
