package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/metrics"
)

// Inventory wires a Store to its refresh and mutation tasks. It is the
// surface the UI layer talks to.
type Inventory struct {
	store     *Store
	exec      *Executor
	refresher *Refresher
	mutator   *Mutator
	available bool
}

type options struct {
	ctx     context.Context
	log     *slog.Logger
	metrics metrics.Recorder
}

// Option configures New.
type Option func(*options)

// WithContext sets the context every task runs under. Cancelling it is the
// only way to abandon in-flight daemon calls.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(o *options) { o.metrics = rec }
}

// New creates the inventory for daemonHost. client may be nil when the
// daemon could not be reached; every operation then reports
// ServiceUnavailable. Pass an untyped nil, not a nil *docker.SDKClient.
// New does not fetch anything; call RefreshAll for the initial load.
func New(client docker.Client, daemonHost string, opts ...Option) *Inventory {
	o := options{
		ctx:     context.Background(),
		log:     slog.Default(),
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := NewStore(daemonHost)
	exec := NewExecutor(o.ctx, o.log, o.metrics)
	exec.OnPanic(func(name string, v any) {
		store.setError(fmt.Sprintf("Internal error in %s: %v", name, v))
	})
	refresher := newRefresher(store, client, exec, o.metrics)

	return &Inventory{
		store:     store,
		exec:      exec,
		refresher: refresher,
		mutator:   newMutator(store, client, exec, refresher, o.metrics),
		available: client != nil,
	}
}

// Store returns the observable store.
func (inv *Inventory) Store() *Store { return inv.store }

// Available reports whether a daemon client is present.
func (inv *Inventory) Available() bool { return inv.available }

func (inv *Inventory) RefreshAll()        { inv.refresher.RefreshAll() }
func (inv *Inventory) RefreshContainers() { inv.refresher.RefreshContainers() }
func (inv *Inventory) RefreshImages()     { inv.refresher.RefreshImages() }
func (inv *Inventory) RefreshVolumes()    { inv.refresher.RefreshVolumes() }
func (inv *Inventory) Refresh(kind Kind)  { inv.refresher.Refresh(kind) }

func (inv *Inventory) SetContainerState(id string, target docker.RuntimeState) {
	inv.mutator.SetContainerState(id, target)
}

func (inv *Inventory) RecordAction(msg string) { inv.mutator.RecordAction(msg) }

// Wait blocks until all spawned tasks, and the tasks they spawned, have
// finished.
func (inv *Inventory) Wait() { inv.exec.Wait() }
