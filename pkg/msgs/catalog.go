package msgs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ssargent/unbag/pkg/codec"
)

// Binder turns a decoded struct into a typed message.
type Binder func(*codec.Struct) (Msg, error)

// Entry is one catalog registration. A nil Bind yields *Dynamic messages.
type Entry struct {
	Name  string
	Shape *codec.Shape
	Bind  Binder
}

// Catalog maps schema names to entries. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// DefaultCatalog returns a catalog holding the built-in message types.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, e := range builtins() {
		if err := c.Register(e); err != nil {
			panic(fmt.Sprintf("msgs: built-in %s: %v", e.Name, err))
		}
	}
	return c
}

// Register adds an entry. The shape is validated up front so an
// unsupported declaration fails here rather than on the first record.
func (c *Catalog) Register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("register: empty schema name")
	}
	if e.Shape == nil {
		return fmt.Errorf("register %s: nil shape", e.Name)
	}
	if err := e.Shape.Validate(); err != nil {
		return fmt.Errorf("register %s: %w", e.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[e.Name]; ok {
		return fmt.Errorf("register %s: %w", e.Name, ErrDuplicateSchema)
	}
	c.entries[e.Name] = e
	return nil
}

// Lookup returns the entry registered under name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Names returns the registered schema names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode decodes payload as the named schema. An absent schema returns
// ErrUnknownSchema; decode and binding failures return the codec error.
func (c *Catalog) Decode(schema string, payload []byte) (Msg, error) {
	e, ok := c.Lookup(schema)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, schema)
	}

	s, err := codec.Decode(payload, e.Shape)
	if err != nil {
		return nil, err
	}
	if e.Bind == nil {
		return &Dynamic{Value: s}, nil
	}
	return e.Bind(s)
}
