// Package state holds the cached daemon inventory and the background tasks
// that keep it in sync: refreshes that replace cached lists and container
// start/stop mutations followed by a container refresh.
package state

import (
	"slices"
	"sync"

	"github.com/MH0386/containr/internal/docker"
)

// Field identifies one observable store field.
type Field int

const (
	FieldDaemonHost Field = iota
	FieldContainers
	FieldImages
	FieldVolumes
	FieldLastAction
	FieldErrorMessage
	FieldIsLoading

	numFields
)

var fieldNames = [numFields]string{
	FieldDaemonHost:   "daemonHost",
	FieldContainers:   "containers",
	FieldImages:       "images",
	FieldVolumes:      "volumes",
	FieldLastAction:   "lastAction",
	FieldErrorMessage: "errorMessage",
	FieldIsLoading:    "isLoading",
}

// String returns the field's channel name as used by the UI.
func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// AllFields lists every field in declaration order.
func AllFields() []Field {
	out := make([]Field, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		out = append(out, f)
	}
	return out
}

// Snapshot is a point-in-time copy of the store. Empty LastAction or
// ErrorMessage means the message is absent.
type Snapshot struct {
	DaemonHost   string             `json:"daemonHost"`
	Containers   []docker.Container `json:"containers"`
	Images       []docker.Image     `json:"images"`
	Volumes      []docker.Volume    `json:"volumes"`
	LastAction   string             `json:"lastAction,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	IsLoading    bool               `json:"isLoading"`
}

// Store is the observable resource cache. Every write replaces exactly one
// field under the lock and then notifies subscribers; writes to different
// fields are not transactional.
type Store struct {
	mu           sync.RWMutex
	daemonHost   string
	containers   []docker.Container
	images       []docker.Image
	volumes      []docker.Volume
	lastAction   string
	errorMessage string
	isLoading    bool
	versions     [numFields]uint64 // bumped by every write to the field

	subMu sync.Mutex
	subs  map[*Subscription]struct{}
}

// NewStore returns an empty store for the given daemon endpoint.
func NewStore(daemonHost string) *Store {
	return &Store{
		daemonHost: daemonHost,
		containers: []docker.Container{},
		images:     []docker.Image{},
		volumes:    []docker.Volume{},
		subs:       make(map[*Subscription]struct{}),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		DaemonHost:   s.daemonHost,
		Containers:   slices.Clone(s.containers),
		Images:       slices.Clone(s.images),
		Volumes:      slices.Clone(s.volumes),
		LastAction:   s.lastAction,
		ErrorMessage: s.errorMessage,
		IsLoading:    s.isLoading,
	}
}

func (s *Store) DaemonHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daemonHost
}

func (s *Store) Containers() []docker.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.containers)
}

func (s *Store) Images() []docker.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.images)
}

func (s *Store) Volumes() []docker.Volume {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.volumes)
}

func (s *Store) LastAction() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAction
}

func (s *Store) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorMessage
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Value returns the current value of a single field, typed as in Snapshot.
func (s *Store) Value(f Field) any {
	v, _ := s.Versioned(f)
	return v
}

// Versioned returns the value of f together with its write version. Each
// write to f increments the version, so of two reads the one with the
// higher version holds the newer value. Fields never written are at 0.
func (s *Store) Versioned(f Field) (any, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f < 0 || f >= numFields {
		return nil, 0
	}
	return s.valueLocked(f), s.versions[f]
}

func (s *Store) valueLocked(f Field) any {
	switch f {
	case FieldDaemonHost:
		return s.daemonHost
	case FieldContainers:
		return slices.Clone(s.containers)
	case FieldImages:
		return slices.Clone(s.images)
	case FieldVolumes:
		return slices.Clone(s.volumes)
	case FieldLastAction:
		return s.lastAction
	case FieldErrorMessage:
		return s.errorMessage
	case FieldIsLoading:
		return s.isLoading
	}
	return nil
}

func (s *Store) setContainers(list []docker.Container) {
	s.mu.Lock()
	s.containers = list
	s.versions[FieldContainers]++
	s.mu.Unlock()
	s.notify(FieldContainers)
}

func (s *Store) setImages(list []docker.Image) {
	s.mu.Lock()
	s.images = list
	s.versions[FieldImages]++
	s.mu.Unlock()
	s.notify(FieldImages)
}

func (s *Store) setVolumes(list []docker.Volume) {
	s.mu.Lock()
	s.volumes = list
	s.versions[FieldVolumes]++
	s.mu.Unlock()
	s.notify(FieldVolumes)
}

func (s *Store) setLastAction(msg string) {
	s.mu.Lock()
	s.lastAction = msg
	s.versions[FieldLastAction]++
	s.mu.Unlock()
	s.notify(FieldLastAction)
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.isLoading = v
	s.versions[FieldIsLoading]++
	s.mu.Unlock()
	s.notify(FieldIsLoading)
}

// setError overwrites the single error message. There is never more than
// one.
func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.errorMessage = msg
	s.versions[FieldErrorMessage]++
	s.mu.Unlock()
	s.notify(FieldErrorMessage)
}

// clearError clears the error message. Clearing an absent message does not
// notify.
func (s *Store) clearError() {
	s.mu.Lock()
	if s.errorMessage == "" {
		s.mu.Unlock()
		return
	}
	s.errorMessage = ""
	s.versions[FieldErrorMessage]++
	s.mu.Unlock()
	s.notify(FieldErrorMessage)
}

// Subscription receives change notifications for a store. Changes are
// coalesced per field, so a slow reader never misses that a field changed,
// it only sees several writes as one.
type Subscription struct {
	mu      sync.Mutex
	pending [numFields]bool
	ready   chan struct{}
}

// Ready is signalled whenever at least one field changed since the last
// call to Changes. It is closed by Unsubscribe.
func (sub *Subscription) Ready() <-chan struct{} {
	return sub.ready
}

// Changes returns the fields written since the previous call, in
// declaration order, and resets the pending set.
func (sub *Subscription) Changes() []Field {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	var out []Field
	for f, p := range sub.pending {
		if p {
			out = append(out, Field(f))
			sub.pending[f] = false
		}
	}
	return out
}

func (sub *Subscription) mark(f Field) {
	sub.mu.Lock()
	sub.pending[f] = true
	sub.mu.Unlock()
	select {
	case sub.ready <- struct{}{}:
	default:
		// Already signalled; Changes will pick this field up.
	}
}

// Subscribe registers a new change subscriber.
func (s *Store) Subscribe() *Subscription {
	sub := &Subscription{ready: make(chan struct{}, 1)}
	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its Ready channel.
func (s *Store) Unsubscribe(sub *Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		close(sub.ready)
	}
}

func (s *Store) notify(f Field) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs {
		sub.mark(f)
	}
}
