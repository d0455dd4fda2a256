package docker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
)

// fakeAPIVersion is what the fake daemon advertises on /_ping.
const fakeAPIVersion = "1.47"

// FakeDaemon is an HTTP server on a Unix socket that implements the subset
// of the Docker Engine API used by SDKClient, backed by a FakeState. The
// real SDKClient connects to it exactly as it would to a real daemon.
type FakeDaemon struct {
	state    *FakeState
	listener net.Listener
	server   *http.Server

	eventsMu  sync.Mutex
	eventSubs map[int]chan events.Message
	nextSubID int
}

// StartFakeDaemon starts a fake daemon on a socket in a fresh temp
// directory. Returns the socket path, a cleanup function, and any error.
func StartFakeDaemon(state *FakeState) (socketPath string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "containr-fake-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}

	sockPath := filepath.Join(tmpDir, "docker.sock")
	stop, err := StartFakeDaemonOnSocket(state, sockPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		return "", nil, err
	}

	return sockPath, func() {
		stop()
		os.RemoveAll(tmpDir)
	}, nil
}

// StartFakeDaemonOnSocket starts a fake daemon listening on socketPath.
// The returned function stops the server and removes the socket.
func StartFakeDaemonOnSocket(state *FakeState, socketPath string) (func(), error) {
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix: %w", err)
	}

	fd := &FakeDaemon{
		state:     state,
		listener:  listener,
		eventSubs: make(map[int]chan events.Message),
	}

	mux := http.NewServeMux()
	fd.registerRoutes(mux)
	fd.server = &http.Server{Handler: stripVersionPrefix(mux)}

	go func() {
		if err := fd.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("fake daemon serve", "err", err)
		}
	}()

	return func() {
		fd.server.Close()
		listener.Close()
		os.Remove(socketPath)
	}, nil
}

// stripVersionPrefix strips the /v{version}/ prefix the SDK adds to every
// request path (e.g. /v1.47/containers/json).
func stripVersionPrefix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if len(path) > 2 && path[0] == '/' && path[1] == 'v' {
			if idx := strings.IndexByte(path[2:], '/'); idx >= 0 {
				r.URL.Path = path[2+idx:]
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (fd *FakeDaemon) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("HEAD /_ping", fd.handlePing)
	mux.HandleFunc("GET /_ping", fd.handlePing)

	mux.HandleFunc("GET /containers/json", fd.handleContainerList)
	mux.HandleFunc("POST /containers/{id}/start", fd.handleContainerStart)
	mux.HandleFunc("POST /containers/{id}/stop", fd.handleContainerStop)

	mux.HandleFunc("GET /images/json", fd.handleImageList)
	mux.HandleFunc("GET /volumes", fd.handleVolumeList)
	mux.HandleFunc("GET /events", fd.handleEvents)

	// Test/dev control endpoints
	mux.HandleFunc("POST /_mock/fail/{op}", fd.handleMockFailSet)
	mux.HandleFunc("DELETE /_mock/fail/{op}", fd.handleMockFailClear)
	mux.HandleFunc("POST /_mock/reset", fd.handleMockReset)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error body in the shape the SDK decodes.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (fd *FakeDaemon) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Api-Version", fakeAPIVersion)
	w.Header().Set("Docker-Experimental", "false")
	w.Header().Set("Ostype", "linux")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write([]byte("OK"))
	}
}

// --- Containers ---

// containerJSON matches the fields of the SDK's container.Summary that
// SDKClient reads.
type containerJSON struct {
	ID      string     `json:"Id"`
	Names   []string   `json:"Names"`
	Image   string     `json:"Image"`
	Created int64      `json:"Created"`
	State   string     `json:"State"`
	Status  string     `json:"Status"`
	Ports   []portJSON `json:"Ports"`
}

type portJSON struct {
	IP          string `json:"IP,omitempty"`
	PrivatePort uint16 `json:"PrivatePort"`
	PublicPort  uint16 `json:"PublicPort,omitempty"`
	Type        string `json:"Type"`
}

func (fd *FakeDaemon) handleContainerList(w http.ResponseWriter, r *http.Request) {
	if msg, ok := fd.state.failure(FakeOpContainers); ok {
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	allParam := r.URL.Query().Get("all")
	all := allParam == "1" || allParam == "true"

	result := make([]containerJSON, 0)
	for _, c := range fd.state.Containers() {
		if !all && c.State != "running" {
			continue
		}
		ports := make([]portJSON, 0, len(c.Ports))
		for _, p := range c.Ports {
			ports = append(ports, portJSON{IP: p.IP, PrivatePort: p.PrivatePort, PublicPort: p.PublicPort, Type: p.Type})
		}
		var names []string
		if c.Name != "" {
			names = []string{"/" + c.Name}
		}
		result = append(result, containerJSON{
			ID:      c.ID,
			Names:   names,
			Image:   c.Image,
			Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
			State:   c.State,
			Status:  c.Status,
			Ports:   ports,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (fd *FakeDaemon) handleContainerStart(w http.ResponseWriter, r *http.Request) {
	fd.setRunning(w, r, FakeOpStart, true)
}

func (fd *FakeDaemon) handleContainerStop(w http.ResponseWriter, r *http.Request) {
	fd.setRunning(w, r, FakeOpStop, false)
}

func (fd *FakeDaemon) setRunning(w http.ResponseWriter, r *http.Request, op string, running bool) {
	if msg, ok := fd.state.failure(op); ok {
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	ref := r.PathValue("id")
	id, changed, err := fd.state.setRunning(ref, running)
	if err != nil {
		writeError(w, http.StatusNotFound, "No such container: "+ref)
		return
	}
	if !changed {
		// Docker answers 304 when the container is already in that state.
		w.WriteHeader(http.StatusNotModified)
		return
	}

	action := events.ActionStart
	if !running {
		action = events.ActionStop
	}
	fd.publishEvent(events.ContainerEventType, action, id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Images ---

type imageJSON struct {
	ID          string   `json:"Id"`
	ParentID    string   `json:"ParentId"`
	RepoTags    []string `json:"RepoTags"`
	RepoDigests []string `json:"RepoDigests"`
	Created     int64    `json:"Created"`
	Size        int64    `json:"Size"`
	SharedSize  int64    `json:"SharedSize"`
	Containers  int64    `json:"Containers"`
}

func (fd *FakeDaemon) handleImageList(w http.ResponseWriter, r *http.Request) {
	if msg, ok := fd.state.failure(FakeOpImages); ok {
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	args, err := filters.FromJSON(r.URL.Query().Get("filters"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	excludeDangling := args.ExactMatch("dangling", "false")

	result := make([]imageJSON, 0)
	for _, img := range fd.state.Images() {
		if excludeDangling && len(img.RepoTags) == 0 {
			continue
		}
		tags := img.RepoTags
		if tags == nil {
			tags = []string{}
		}
		result = append(result, imageJSON{
			ID:          img.ID,
			RepoTags:    tags,
			RepoDigests: []string{},
			Created:     time.Date(2025, 11, 15, 4, 0, 0, 0, time.UTC).Unix(),
			Size:        img.Size,
			SharedSize:  -1,
			Containers:  -1,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Volumes ---

type volumeJSON struct {
	Name       string            `json:"Name"`
	Driver     string            `json:"Driver"`
	Mountpoint string            `json:"Mountpoint"`
	Scope      string            `json:"Scope"`
	CreatedAt  string            `json:"CreatedAt"`
	Labels     map[string]string `json:"Labels"`
	Options    map[string]string `json:"Options"`
}

type volumeListJSON struct {
	Volumes  []volumeJSON `json:"Volumes"`
	Warnings []string     `json:"Warnings"`
}

func (fd *FakeDaemon) handleVolumeList(w http.ResponseWriter, r *http.Request) {
	if msg, ok := fd.state.failure(FakeOpVolumes); ok {
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	vols := fd.state.Volumes()
	result := make([]volumeJSON, 0, len(vols))
	for _, v := range vols {
		result = append(result, volumeJSON{
			Name:       v.Name,
			Driver:     v.Driver,
			Mountpoint: v.Mountpoint,
			Scope:      "local",
			CreatedAt:  "2026-01-01T00:00:00Z",
			Labels:     map[string]string{},
			Options:    map[string]string{},
		})
	}
	writeJSON(w, http.StatusOK, volumeListJSON{Volumes: result, Warnings: []string{}})
}

// --- Events ---

func (fd *FakeDaemon) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	subID, ch := fd.subscribeEvents()
	defer fd.unsubscribeEvents(subID)

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if err := enc.Encode(evt); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func (fd *FakeDaemon) subscribeEvents() (int, chan events.Message) {
	fd.eventsMu.Lock()
	defer fd.eventsMu.Unlock()
	id := fd.nextSubID
	fd.nextSubID++
	ch := make(chan events.Message, 64)
	fd.eventSubs[id] = ch
	return id, ch
}

func (fd *FakeDaemon) unsubscribeEvents(id int) {
	fd.eventsMu.Lock()
	defer fd.eventsMu.Unlock()
	delete(fd.eventSubs, id)
}

// publishEvent sends an event to all subscribers (non-blocking).
func (fd *FakeDaemon) publishEvent(typ events.Type, action events.Action, actorID string) {
	fd.eventsMu.Lock()
	defer fd.eventsMu.Unlock()

	now := time.Now()
	evt := events.Message{
		Type:     typ,
		Action:   action,
		Actor:    events.Actor{ID: actorID, Attributes: map[string]string{}},
		Scope:    "local",
		Time:     now.Unix(),
		TimeNano: now.UnixNano(),
	}

	for _, ch := range fd.eventSubs {
		select {
		case ch <- evt:
		default:
			// Drop if subscriber is slow
		}
	}
}

// --- Control endpoints ---

func (fd *FakeDaemon) handleMockFailSet(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "simulated failure"
	}
	if err := fd.state.SetFailure(r.PathValue("op"), msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (fd *FakeDaemon) handleMockFailClear(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("op")
	if !knownFakeOp(op) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: %q", ErrUnknownFakeOp, op))
		return
	}
	fd.state.ClearFailure(op)
	w.WriteHeader(http.StatusNoContent)
}

func (fd *FakeDaemon) handleMockReset(w http.ResponseWriter, r *http.Request) {
	fd.state.Reset()
	fd.publishEvent(events.ContainerEventType, events.ActionCreate, "")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
