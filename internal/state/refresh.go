package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/metrics"
)

// ServiceUnavailable is the error message set by every operation when no
// daemon client is available.
const ServiceUnavailable = "Docker service not available"

// Kind is a cached resource kind.
type Kind string

const (
	KindContainers Kind = "containers"
	KindImages     Kind = "images"
	KindVolumes    Kind = "volumes"
)

// Refresher fetches resource lists from the daemon and writes them into the
// store. Each refresh is an independent task: nothing joins them, orders
// them or drops a stale one, so the last one to resolve wins.
type Refresher struct {
	store   *Store
	client  docker.Client // nil when the daemon was unreachable at startup
	exec    *Executor
	metrics metrics.Recorder
}

func newRefresher(store *Store, client docker.Client, exec *Executor, rec metrics.Recorder) *Refresher {
	return &Refresher{store: store, client: client, exec: exec, metrics: rec}
}

// RefreshAll starts the three refreshes without waiting for any of them.
func (r *Refresher) RefreshAll() {
	r.RefreshContainers()
	r.RefreshImages()
	r.RefreshVolumes()
}

// Refresh starts the refresh for kind.
func (r *Refresher) Refresh(kind Kind) {
	switch kind {
	case KindContainers:
		r.RefreshContainers()
	case KindImages:
		r.RefreshImages()
	case KindVolumes:
		r.RefreshVolumes()
	}
}

// RefreshContainers is the only refresh that drives IsLoading: true right
// before the list call, false once it has resolved either way.
func (r *Refresher) RefreshContainers() {
	if !r.available(KindContainers) {
		return
	}
	r.exec.Go("refresh-containers", func(ctx context.Context, log *slog.Logger) {
		r.store.setLoading(true)
		defer r.store.setLoading(false)
		runRefresh(ctx, r, log, KindContainers, r.client.ListContainers, r.store.setContainers)
	})
}

func (r *Refresher) RefreshImages() {
	if !r.available(KindImages) {
		return
	}
	r.exec.Go("refresh-images", func(ctx context.Context, log *slog.Logger) {
		runRefresh(ctx, r, log, KindImages, r.client.ListImages, r.store.setImages)
	})
}

func (r *Refresher) RefreshVolumes() {
	if !r.available(KindVolumes) {
		return
	}
	r.exec.Go("refresh-volumes", func(ctx context.Context, log *slog.Logger) {
		runRefresh(ctx, r, log, KindVolumes, r.client.ListVolumes, r.store.setVolumes)
	})
}

// available reports whether a client is present, setting the fixed
// unavailable message if not. Caches and IsLoading are left alone.
func (r *Refresher) available(kind Kind) bool {
	if r.client != nil {
		return true
	}
	r.metrics.IncRefreshResult(string(kind), metrics.ResultUnavailable)
	r.store.setError(ServiceUnavailable)
	return false
}

// runRefresh performs one list call. On success the cached list is replaced
// and the error message cleared, whichever operation set it; on failure the
// cached list is kept and the error message overwritten.
func runRefresh[T any](
	ctx context.Context,
	r *Refresher,
	log *slog.Logger,
	kind Kind,
	list func(context.Context) ([]T, error),
	apply func([]T),
) {
	start := time.Now()
	items, err := list(ctx)
	r.metrics.ObserveRefreshDuration(string(kind), time.Since(start))

	if err != nil {
		log.Warn("refresh failed", "kind", kind, "err", err)
		r.metrics.IncRefreshResult(string(kind), metrics.ResultFailed)
		r.store.setError(fmt.Sprintf("Failed to list %s: %v", kind, err))
		return
	}

	if items == nil {
		items = []T{}
	}
	apply(items)
	r.store.clearError()
	r.metrics.IncRefreshResult(string(kind), metrics.ResultSuccess)
	log.Debug("refresh done", "kind", kind, "count", len(items))
}
