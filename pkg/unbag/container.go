package unbag

import "github.com/ssargent/unbag/pkg/bag"

// Container is the source an Iterator reads from.
type Container interface {
	Routes() bag.RoutingTable
	Chunks() ChunkCursor
}

// ChunkCursor yields chunks in container order and io.EOF at the end.
type ChunkCursor interface {
	Next() (Chunk, error)
}

// Chunk materializes its records in stored order.
type Chunk interface {
	Records() ([]bag.RawRecord, error)
}

// FromBag adapts an open bag to a Container.
func FromBag(b *bag.Bag) Container {
	return bagContainer{b: b}
}

type bagContainer struct {
	b *bag.Bag
}

func (c bagContainer) Routes() bag.RoutingTable {
	return c.b.Connections()
}

func (c bagContainer) Chunks() ChunkCursor {
	return bagChunks{it: c.b.Chunks()}
}

type bagChunks struct {
	it *bag.ChunkIterator
}

func (c bagChunks) Next() (Chunk, error) {
	ch, err := c.it.Next()
	if err != nil {
		return nil, err
	}
	return ch, nil
}
