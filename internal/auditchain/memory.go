package auditchain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/provenant-id/provenant/internal/registry/model"
)

// MemoryChain is an in-memory, thread-safe Chain implementation. Useful for
// testing and for single-process deployments without durable persistence.
type MemoryChain struct {
	mu      sync.RWMutex
	entries []*Entry
}

// New creates a MemoryChain initialised with the canonical genesis entry.
func New() *MemoryChain {
	c := &MemoryChain{}
	genesis := &Entry{
		Index:     0,
		Timestamp: now(),
		Action:    "genesis",
		Actor:     SystemActor,
		DataHash:  GenesisHash,
		PrevHash:  GenesisHash,
		Hash:      GenesisHash, // well-known constant, not computed
	}
	c.entries = append(c.entries, genesis)
	return c
}

// Append implements Chain.
func (c *MemoryChain) Append(_ context.Context, ev model.Event) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evJSON, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	prev := c.entries[len(c.entries)-1]
	entry := &Entry{
		Index:     len(c.entries),
		Timestamp: now(),
		Subject:   ev.Subject.String(),
		Category:  ev.Category.String(),
		Action:    string(ev.Action),
		Actor:     ev.Authority.String(),
		DataHash:  digest(evJSON),
		PrevHash:  prev.Hash,
	}
	entry.Hash = hashEntry(entry)
	c.entries = append(c.entries, entry)
	return entry, nil
}

// Get implements Chain.
func (c *MemoryChain) Get(_ context.Context, index int) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.entries) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	return c.entries[index], nil
}

// Len implements Chain.
func (c *MemoryChain) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Verify implements Chain. It walks the chain and checks that all hashes are
// consistent; the genesis entry is validated against GenesisHash.
func (c *MemoryChain) Verify(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i, curr := range c.entries {
		if i == 0 {
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
			}
			continue
		}
		prev := c.entries[i-1]
		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("hash chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Index)
		}
	}
	return nil
}

// Root implements Chain.
func (c *MemoryChain) Root(_ context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return "", nil
	}
	return c.entries[len(c.entries)-1].Hash, nil
}
