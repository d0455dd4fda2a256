package docker

import "fmt"

// RuntimeState is the two-valued container state shown to the UI.
// Only a daemon state of exactly "running" maps to Running; everything else,
// including a missing state, is Stopped.
type RuntimeState int

const (
	Stopped RuntimeState = iota
	Running
)

// String returns the wire form ("running" or "stopped").
func (s RuntimeState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Label returns the human-readable form ("Running" or "Stopped").
func (s RuntimeState) Label() string {
	if s == Running {
		return "Running"
	}
	return "Stopped"
}

// ActionLabel names the action that flips the state (Stop for a running
// container, Start for a stopped one).
func (s RuntimeState) ActionLabel() string {
	if s == Running {
		return "Stop"
	}
	return "Start"
}

func (s RuntimeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RuntimeState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running":
		*s = Running
	case "stopped":
		*s = Stopped
	default:
		return fmt.Errorf("invalid runtime state %q", text)
	}
	return nil
}

// ParseRuntimeState collapses a raw daemon state string into a RuntimeState.
func ParseRuntimeState(raw string) RuntimeState {
	if raw == "running" {
		return Running
	}
	return Stopped
}

// Container is the normalized row for one container.
type Container struct {
	ID     string       `json:"id"`     // first 12 chars of the daemon id
	Name   string       `json:"name"`   // first name without leading "/"
	Image  string       `json:"image"`  // image reference the container was created from
	Status string       `json:"status"` // free-form, e.g. "Up 2 hours"
	Ports  string       `json:"ports"`  // "8080:80, 443" or "--"
	State  RuntimeState `json:"state"`
}

// Image is the normalized row for one tagged image.
type Image struct {
	ID         string `json:"id"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Size       string `json:"size"`
}

// Volume is the normalized row for one volume. Size is always "--": the
// list call does not report usage.
type Volume struct {
	Name       string `json:"name"`
	Driver     string `json:"driver"`
	Mountpoint string `json:"mountpoint"`
	Size       string `json:"size"`
}

// Event types delivered by Client.Events.
const (
	EventContainer = "container"
	EventImage     = "image"
	EventVolume    = "volume"
)

// Event is a daemon resource lifecycle event.
type Event struct {
	Type    string // EventContainer, EventImage or EventVolume
	Action  string // start, stop, die, pull, delete, create, destroy, ...
	ActorID string
}
