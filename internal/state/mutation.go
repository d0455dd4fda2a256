package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/metrics"
)

// Mutator starts and stops containers. A successful mutation is followed by
// a full container refresh; the cache is never patched in place.
type Mutator struct {
	store     *Store
	client    docker.Client
	exec      *Executor
	refresher *Refresher
	metrics   metrics.Recorder
}

func newMutator(store *Store, client docker.Client, exec *Executor, refresher *Refresher, rec metrics.Recorder) *Mutator {
	return &Mutator{store: store, client: client, exec: exec, refresher: refresher, metrics: rec}
}

// SetContainerState starts the container when target is Running and stops
// it otherwise. The call goes straight to the daemon: asking to start a
// running container is not short-circuited here.
func (m *Mutator) SetContainerState(id string, target docker.RuntimeState) {
	action, past := "stop", "Stopped"
	if target == docker.Running {
		action, past = "start", "Started"
	}

	if m.client == nil {
		m.metrics.IncMutationResult(action, metrics.ResultUnavailable)
		m.store.setError(ServiceUnavailable)
		return
	}

	m.exec.Go(action+"-container", func(ctx context.Context, log *slog.Logger) {
		var err error
		if target == docker.Running {
			err = m.client.StartContainer(ctx, id)
		} else {
			err = m.client.StopContainer(ctx, id)
		}

		if err != nil {
			log.Warn("container mutation failed", "action", action, "container", id, "err", err)
			m.metrics.IncMutationResult(action, metrics.ResultFailed)
			m.store.setError(fmt.Sprintf("Failed to %s container: %v", action, err))
			return
		}

		m.metrics.IncMutationResult(action, metrics.ResultSuccess)
		m.store.setLastAction(fmt.Sprintf("%s container %s", past, id))
		m.store.clearError()
		m.refresher.RefreshContainers()
	})
}

// RecordAction sets the last action message directly.
func (m *Mutator) RecordAction(msg string) {
	m.store.setLastAction(msg)
}
