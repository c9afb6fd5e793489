package erpclient

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	cfg "github.com/rachmataditiya/odoo-mcp-server/internal/config"
	"github.com/rachmataditiya/odoo-mcp-server/pkg/logging"
)

// poolEntry pairs a constructed Client with the descriptor hash it was built
// from, so a reconfiguration can be detected without reconstructing eagerly.
type poolEntry struct {
	client Client
	hash   string
}

// ClientPool caches one Client per configured instance name, rebuilding an
// entry only when its descriptor actually changes. Concurrent misses for the
// same instance collapse into a single construction via singleflight.
type ClientPool struct {
	mu      sync.RWMutex
	entries map[string]poolEntry
	group   singleflight.Group
}

// NewClientPool creates an empty pool.
func NewClientPool() *ClientPool {
	return &ClientPool{entries: make(map[string]poolEntry)}
}

func descriptorHash(desc cfg.InstanceDescriptor) string {
	b, _ := json.Marshal(desc)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Get returns the Client for desc, constructing or rebuilding it if absent or
// if desc differs from whatever entry is currently cached. Callers already
// holding a reference to a stale entry may keep using it; Get never mutates
// a Client in place, it only swaps the pool's own reference.
func (p *ClientPool) Get(desc cfg.InstanceDescriptor) (Client, error) {
	hash := descriptorHash(desc)

	p.mu.RLock()
	entry, ok := p.entries[desc.Name]
	p.mu.RUnlock()
	if ok && entry.hash == hash {
		return entry.client, nil
	}

	result, err, _ := p.group.Do(desc.Name+":"+hash, func() (interface{}, error) {
		p.mu.RLock()
		entry, ok := p.entries[desc.Name]
		p.mu.RUnlock()
		if ok && entry.hash == hash {
			return entry.client, nil
		}

		client, err := buildClient(desc)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.entries[desc.Name] = poolEntry{client: client, hash: hash}
		p.mu.Unlock()

		logging.Info("ClientPool", "built client for instance %s (legacy=%v)", desc.Name, desc.IsLegacy())
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Client), nil
}

// Evict drops the cached entry for name, if any, so the next Get rebuilds it
// from scratch. Existing holders of the old Client are unaffected.
func (p *ClientPool) Evict(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, name)
}

func buildClient(desc cfg.InstanceDescriptor) (Client, error) {
	if desc.IsLegacy() {
		return NewLegacy(desc)
	}
	if desc.APIKey == "" && desc.Username == "" {
		return nil, &Error{Kind: ErrAuth, Message: fmt.Sprintf("instance %q has no apiKey or username/password configured", desc.Name)}
	}
	return NewModern(desc), nil
}
