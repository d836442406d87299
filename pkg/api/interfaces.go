// Package api provides interfaces for dependency injection
package api

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/unbag/pkg/bag"
	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/unbag"
)

// BagSource defines the read operations the handlers need
type BagSource interface {
	// List summarizes every bag in the source
	List() ([]BagSummary, error)

	// Connections returns the connections of the named bag, ordered by id
	Connections(name string) ([]bag.Connection, error)

	// Messages decodes up to limit records of the named bag
	Messages(ctx context.Context, name string, topics []string, limit int) (*MessagesResponse, error)
}

// Dependencies are the shared services a server is built from
type Dependencies struct {
	Catalog  *msgs.Catalog
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// Metrics are the iterator metrics, registered with Registry. Created
	// on Registry when nil.
	Metrics  *unbag.Metrics
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves until ctx is cancelled or the listener fails
	StartServer(ctx context.Context, config ServerConfig, deps Dependencies) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
