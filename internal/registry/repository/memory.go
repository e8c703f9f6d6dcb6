package repository

import (
	"context"
	"sync"

	"github.com/provenant-id/provenant/internal/registry/model"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// recordKey identifies one credential record.
type recordKey struct {
	subject  ethid.Address
	category ethid.Hash
}

// MemoryStore is an in-memory, thread-safe implementation of both
// CredentialStore and AuthorityStore. It is primarily useful for testing and
// for single-process deployments that do not require durable persistence.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[recordKey]*model.CredentialRecord
	subjects    map[ethid.Address][]ethid.Hash
	authorities map[ethid.Hash]ethid.Address

	keyMu sync.Mutex
	keys  map[recordKey]*sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[recordKey]*model.CredentialRecord),
		subjects:    make(map[ethid.Address][]ethid.Hash),
		authorities: make(map[ethid.Hash]ethid.Address),
		keys:        make(map[recordKey]*sync.Mutex),
	}
}

// lockKey returns the mutation lock for key, creating it on first use.
func (s *MemoryStore) lockKey(key recordKey) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	l, ok := s.keys[key]
	if !ok {
		l = &sync.Mutex{}
		s.keys[key] = l
	}
	return l
}

// Get implements CredentialStore. The returned record is a deep copy.
func (s *MemoryStore) Get(_ context.Context, subject ethid.Address, category ethid.Hash) (*model.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{subject, category}]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.Clone(), nil
}

// Mutate implements CredentialStore. Mutations to the same key are serialised
// by a per-key mutex; the maps are swapped under the store lock only after fn
// succeeds, so readers never observe a partial mutation.
func (s *MemoryStore) Mutate(_ context.Context, subject ethid.Address, category ethid.Hash, fn MutateFunc) (*model.CredentialRecord, error) {
	key := recordKey{subject, category}
	l := s.lockKey(key)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	stored, existed := s.records[key]
	s.mu.RUnlock()

	var work *model.CredentialRecord
	if existed {
		work = stored.Clone()
	} else {
		work = &model.CredentialRecord{Subject: subject, Category: category}
	}

	if err := fn(work); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if work.Exists {
		s.records[key] = work
		if !existed {
			s.subjects[subject] = append(s.subjects[subject], category)
		}
	}
	s.mu.Unlock()

	return work.Clone(), nil
}

// SubjectCategories implements CredentialStore.
func (s *MemoryStore) SubjectCategories(_ context.Context, subject ethid.Address) ([]ethid.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cats := s.subjects[subject]
	out := make([]ethid.Hash, len(cats))
	copy(out, cats)
	return out, nil
}

// GetAuthority implements AuthorityStore.
func (s *MemoryStore) GetAuthority(_ context.Context, category ethid.Hash) (ethid.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorities[category], nil
}

// SetAuthority implements AuthorityStore.
func (s *MemoryStore) SetAuthority(_ context.Context, category ethid.Hash, authority ethid.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorities[category] = authority
	return nil
}
