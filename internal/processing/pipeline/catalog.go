package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vietddude/harvester/internal/core/failure"
)

// ErrUnknownNode is returned when a schema references an unregistered node.
var ErrUnknownNode = errors.New("node is not registered")

// Factory builds a node instance from its declaration.
type Factory func(cfg NodeConfig) (Node, error)

// Catalog is the registration table mapping stable node identifiers to factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory.
func (c *Catalog) Register(id string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[id] = f
}

// Has reports whether id is registered.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[id]
	return ok
}

// IDs returns the registered identifiers in sorted order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.factories))
	for id := range c.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Build instantiates the node declared by cfg.
func (c *Catalog) Build(cfg NodeConfig) (Node, error) {
	c.mu.RLock()
	f, ok := c.factories[cfg.Implementation()]
	c.mu.RUnlock()
	if !ok {
		return nil, failure.Configuration(
			fmt.Sprintf("node %q cannot be instantiated", cfg.Node),
			fmt.Errorf("%w: %s", ErrUnknownNode, cfg.Implementation()),
		)
	}

	node, err := f(cfg)
	if err != nil {
		if _, classified := failure.As(err); classified {
			return nil, err
		}
		return nil, failure.Configuration(fmt.Sprintf("node %q construction failed", cfg.Node), err)
	}
	return node, nil
}
