// Package di provides dependency injection container
package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/dataversion/pkg/codec"
	"github.com/ssargent/dataversion/pkg/config"
	"github.com/ssargent/dataversion/pkg/host"
	"github.com/ssargent/dataversion/pkg/processor"
	"github.com/ssargent/dataversion/pkg/storage"
)

// StoreOpener opens the slot store for a data directory.
type StoreOpener func(dataDir string, opts storage.Options) (*storage.AccountStore, error)

// Container holds all the dependencies for the application
type Container struct {
	openStore  StoreOpener
	registerer prometheus.Registerer
	codecOpts  []codec.Option
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		openStore:  storage.Open,
		registerer: prometheus.DefaultRegisterer,
	}
}

// SetStoreOpener allows overriding how the store is opened (for testing)
func (c *Container) SetStoreOpener(opener StoreOpener) {
	c.openStore = opener
}

// SetRegisterer sets where host metrics are registered. nil disables
// registration.
func (c *Container) SetRegisterer(reg prometheus.Registerer) {
	c.registerer = reg
}

// AddCodecOptions appends options applied to the processor's record codec
func (c *Container) AddCodecOptions(opts ...codec.Option) {
	c.codecOpts = append(c.codecOpts, opts...)
}

// NewHost validates cfg and wires a host over the configured store. The
// returned close function releases the store.
func (c *Container) NewHost(cfg *config.Config) (*host.Host, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	programID, err := cfg.Program()
	if err != nil {
		return nil, nil, err
	}

	store, err := c.openStore(cfg.DataDir, storage.Options{Sync: cfg.Sync})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	proc := processor.New(programID, codec.NewRecordCodec(c.codecOpts...))
	return host.New(store, proc, host.NewMetrics(c.registerer)), store.Close, nil
}
