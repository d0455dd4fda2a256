package docker

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
)

// Fake operations that can be made to fail with FakeState.SetFailure.
const (
	FakeOpContainers = "containers"
	FakeOpImages     = "images"
	FakeOpVolumes    = "volumes"
	FakeOpStart      = "start"
	FakeOpStop       = "stop"
)

var errNoSuchContainer = errors.New("no such container")

// ErrUnknownFakeOp is returned by SetFailure for an op outside the FakeOp set.
var ErrUnknownFakeOp = errors.New("unknown fake op")

func knownFakeOp(op string) bool {
	switch op {
	case FakeOpContainers, FakeOpImages, FakeOpVolumes, FakeOpStart, FakeOpStop:
		return true
	}
	return false
}

// FakeContainer is one container held by a FakeState.
type FakeContainer struct {
	ID     string // full 64-char id
	Name   string // without the leading "/"
	Image  string
	State  string // running, exited, created, paused, ...
	Status string
	Ports  []container.Port
}

// FakeImage is one image held by a FakeState. An image without RepoTags is
// dangling.
type FakeImage struct {
	ID       string
	RepoTags []string
	Size     int64
}

// FakeVolume is one volume held by a FakeState.
type FakeVolume struct {
	Name       string
	Driver     string
	Mountpoint string
}

// FakeState is the in-memory inventory served by FakeDaemon. It is safe for
// concurrent use; tests mutate it while the daemon is serving.
type FakeState struct {
	mu         sync.RWMutex
	containers []FakeContainer
	images     []FakeImage
	volumes    []FakeVolume
	failures   map[string]string // op → error message returned with HTTP 500

	defaults *FakeState // restored on Reset()
}

// NewFakeState returns an empty FakeState.
func NewFakeState() *FakeState {
	return &FakeState{failures: make(map[string]string)}
}

// DefaultFakeState returns a small, stable inventory used by the
// mock-daemon binary and by integration tests.
func DefaultFakeState() *FakeState {
	s := NewFakeState()
	s.AddContainer(FakeContainer{
		ID:     "4f66ad9a0b2e4e7d8c1f0a9b8c7d6e5f4a3b2c1d0e9f8a7b6c5d4e3f2a1b0c9d",
		Name:   "web",
		Image:  "nginx:1.27",
		State:  "running",
		Status: "Up 3 hours",
		Ports: []container.Port{
			{IP: "0.0.0.0", PrivatePort: 80, PublicPort: 8080, Type: "tcp"},
			{PrivatePort: 443, Type: "tcp"},
		},
	})
	s.AddContainer(FakeContainer{
		ID:     "9c2b7e1d3a4f5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c",
		Name:   "db",
		Image:  "postgres:16-alpine",
		State:  "exited",
		Status: "Exited (0) 2 days ago",
	})
	s.AddContainer(FakeContainer{
		ID:     "1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f1a2b",
		Name:   "cache",
		Image:  "redis:7",
		State:  "paused",
		Status: "Up 5 minutes (Paused)",
		Ports:  []container.Port{{PrivatePort: 6379, Type: "tcp"}},
	})
	s.AddImage(FakeImage{ID: "sha256:0d6f7a1b2c3d", RepoTags: []string{"nginx:1.27"}, Size: 192 * 1024 * 1024})
	s.AddImage(FakeImage{ID: "sha256:5e8a9b0c1d2e", RepoTags: []string{"postgres:16-alpine"}, Size: 256 * 1024 * 1024})
	s.AddImage(FakeImage{ID: "sha256:7b1c2d3e4f5a", RepoTags: []string{"redis:7"}, Size: 117 * 1024 * 1024})
	s.AddImage(FakeImage{ID: "sha256:a1b2c3d4e5f6", Size: 94060544})
	s.AddVolume(FakeVolume{Name: "pgdata", Driver: "local", Mountpoint: "/var/lib/docker/volumes/pgdata/_data"})
	s.AddVolume(FakeVolume{Name: "nginx-conf", Driver: "local", Mountpoint: "/var/lib/docker/volumes/nginx-conf/_data"})
	s.SaveDefaults()
	return s
}

func (s *FakeState) AddContainer(c FakeContainer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers = append(s.containers, c)
}

func (s *FakeState) AddImage(img FakeImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, img)
}

func (s *FakeState) AddVolume(v FakeVolume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes = append(s.volumes, v)
}

// SetFailure makes every request for op fail with msg until cleared.
func (s *FakeState) SetFailure(op, msg string) error {
	if !knownFakeOp(op) {
		return fmt.Errorf("%w: %q", ErrUnknownFakeOp, op)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = msg
	return nil
}

// ClearFailure removes a failure set with SetFailure.
func (s *FakeState) ClearFailure(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, op)
}

func (s *FakeState) failure(op string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.failures[op]
	return msg, ok
}

// SaveDefaults snapshots the current inventory so Reset can restore it.
func (s *FakeState) SaveDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = &FakeState{
		containers: cloneContainers(s.containers),
		images:     append([]FakeImage(nil), s.images...),
		volumes:    append([]FakeVolume(nil), s.volumes...),
	}
}

// Reset restores the inventory saved by SaveDefaults and clears failures.
func (s *FakeState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]string)
	if s.defaults == nil {
		s.containers, s.images, s.volumes = nil, nil, nil
		return
	}
	s.containers = cloneContainers(s.defaults.containers)
	s.images = append([]FakeImage(nil), s.defaults.images...)
	s.volumes = append([]FakeVolume(nil), s.defaults.volumes...)
}

// Containers returns a snapshot copy of all containers.
func (s *FakeState) Containers() []FakeContainer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneContainers(s.containers)
}

func (s *FakeState) Images() []FakeImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FakeImage(nil), s.images...)
}

func (s *FakeState) Volumes() []FakeVolume {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FakeVolume(nil), s.volumes...)
}

// ContainerState returns the raw state of the container matching ref
// (full id, id prefix or name), or "" if there is none.
func (s *FakeState) ContainerState(ref string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.find(ref); i >= 0 {
		return s.containers[i].State
	}
	return ""
}

// setRunning flips the container matching ref to running or exited.
// changed is false when it was already in the requested state.
func (s *FakeState) setRunning(ref string, running bool) (id string, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(ref)
	if i < 0 {
		return "", false, errNoSuchContainer
	}
	c := &s.containers[i]
	if (c.State == "running") == running {
		return c.ID, false, nil
	}
	if running {
		c.State = "running"
		c.Status = "Up Less than a second"
	} else {
		c.State = "exited"
		c.Status = "Exited (0) Less than a second ago"
	}
	return c.ID, true, nil
}

// find must be called with s.mu held.
func (s *FakeState) find(ref string) int {
	ref = strings.TrimPrefix(ref, "/")
	if ref == "" {
		return -1
	}
	for i, c := range s.containers {
		if c.ID == ref || c.Name == ref || strings.HasPrefix(c.ID, ref) {
			return i
		}
	}
	return -1
}

func cloneContainers(in []FakeContainer) []FakeContainer {
	out := make([]FakeContainer, len(in))
	for i, c := range in {
		c.Ports = append([]container.Port(nil), c.Ports...)
		out[i] = c
	}
	return out
}
