package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MH0386/containr/internal/docker"
)

// fakeClient is a docker.Client whose behaviour is set per test through
// function fields. Unset fields succeed with empty results.
type fakeClient struct {
	listContainers func(ctx context.Context) ([]docker.Container, error)
	listImages     func(ctx context.Context) ([]docker.Image, error)
	listVolumes    func(ctx context.Context) ([]docker.Volume, error)
	start          func(ctx context.Context, id string) error
	stop           func(ctx context.Context, id string) error

	mu    sync.Mutex
	calls map[string]int
	ids   []string
}

func (f *fakeClient) record(op, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	if id != "" {
		f.ids = append(f.ids, id)
	}
}

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) ListContainers(ctx context.Context) ([]docker.Container, error) {
	f.record("containers", "")
	if f.listContainers != nil {
		return f.listContainers(ctx)
	}
	return nil, nil
}

func (f *fakeClient) ListImages(ctx context.Context) ([]docker.Image, error) {
	f.record("images", "")
	if f.listImages != nil {
		return f.listImages(ctx)
	}
	return nil, nil
}

func (f *fakeClient) ListVolumes(ctx context.Context) ([]docker.Volume, error) {
	f.record("volumes", "")
	if f.listVolumes != nil {
		return f.listVolumes(ctx)
	}
	return nil, nil
}

func (f *fakeClient) StartContainer(ctx context.Context, id string) error {
	f.record("start", id)
	if f.start != nil {
		return f.start(ctx, id)
	}
	return nil
}

func (f *fakeClient) StopContainer(ctx context.Context, id string) error {
	f.record("stop", id)
	if f.stop != nil {
		return f.stop(ctx, id)
	}
	return nil
}

func (f *fakeClient) Events(ctx context.Context) (<-chan docker.Event, <-chan error) {
	out := make(chan docker.Event)
	errc := make(chan error)
	close(out)
	close(errc)
	return out, errc
}

func (f *fakeClient) Close() error { return nil }

var _ docker.Client = (*fakeClient)(nil)

// gate blocks a fake call until released, and reports when it was entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) pass() {
	close(g.entered)
	<-g.release
}

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gated call")
	}
}

func (g *gate) open() { close(g.release) }

// gated returns a list function that blocks on g and then returns items, err.
func gated[T any](g *gate, items []T, err error) func(context.Context) ([]T, error) {
	return func(context.Context) ([]T, error) {
		g.pass()
		return items, err
	}
}

func returning[T any](items []T, err error) func(context.Context) ([]T, error) {
	return func(context.Context) ([]T, error) {
		return items, err
	}
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestInventory(t *testing.T, fc *fakeClient) *Inventory {
	t.Helper()
	var client docker.Client
	if fc != nil {
		client = fc
	}
	inv := New(client, "unix:///var/run/docker.sock")
	t.Cleanup(inv.Wait)
	return inv
}
