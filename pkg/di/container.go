// Package di provides dependency injection container
package di

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/unbag/pkg/api" //nolint:depguard
	"github.com/ssargent/unbag/pkg/msgs"
	"github.com/ssargent/unbag/pkg/unbag"
)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory api.ServerFactory
	catalog       *msgs.Catalog
	registry      *prometheus.Registry
	logger        *slog.Logger
	metrics       *unbag.Metrics
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory: api.NewServerFactory(),
		catalog:       msgs.DefaultCatalog(),
		registry:      prometheus.NewRegistry(),
		logger:        slog.Default(),
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// GetCatalog returns the schema catalog records are decoded with
func (c *Container) GetCatalog() *msgs.Catalog {
	return c.catalog
}

// GetLogger returns the application logger
func (c *Container) GetLogger() *slog.Logger {
	return c.logger
}

// SetLogger replaces the application logger, typically once the config is loaded
func (c *Container) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// GetRegistry returns the Prometheus registry shared by the iterator and the API
func (c *Container) GetRegistry() *prometheus.Registry {
	return c.registry
}

// GetMetrics returns the iterator metrics, registering them on first use
func (c *Container) GetMetrics() *unbag.Metrics {
	if c.metrics == nil {
		c.metrics = unbag.NewMetrics(c.registry)
	}
	return c.metrics
}

// Dependencies returns the services a server is started with
func (c *Container) Dependencies() api.Dependencies {
	return api.Dependencies{
		Catalog:  c.catalog,
		Logger:   c.logger,
		Registry: c.registry,
		Metrics:  c.GetMetrics(),
	}
}
