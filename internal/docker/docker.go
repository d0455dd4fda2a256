package docker

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/docker/docker/client"
)

// Client abstracts the container-engine daemon. Each call is a single
// attempt; start and stop do not verify the resulting state, callers re-list
// to observe it.
type Client interface {
	// ListContainers returns running and stopped containers in daemon order.
	ListContainers(ctx context.Context) ([]Container, error)

	// ListImages returns tagged images only. Dangling images are filtered
	// out by the daemon request itself.
	ListImages(ctx context.Context) ([]Image, error)

	// ListVolumes returns all volumes in daemon order.
	ListVolumes(ctx context.Context) ([]Volume, error)

	// StartContainer starts a container by id or name.
	StartContainer(ctx context.Context, id string) error

	// StopContainer stops a container by id or name.
	StopContainer(ctx context.Context, id string) error

	// Events streams container, image and volume lifecycle events. Both
	// channels are closed when the stream ends or ctx is cancelled.
	Events(ctx context.Context) (<-chan Event, <-chan error)

	// Close releases any resources held by the client.
	Close() error
}

// ErrUnavailable is matched by every error returned from Connect.
var ErrUnavailable = errors.New("docker daemon unavailable")

// ConnectionError reports that the daemon could not be reached when the
// client was created.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to docker at %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// ResolveHost returns the daemon endpoint to use: the explicit override if
// non-empty, then $DOCKER_HOST, then the platform default socket. The value
// is passed through as-is.
func ResolveHost(override string) string {
	if override != "" {
		return override
	}
	if v := os.Getenv(client.EnvOverrideHost); v != "" {
		return v
	}
	return client.DefaultDockerHost
}

// Connect creates an SDKClient for host and pings the daemon once. Any
// failure is returned as a *ConnectionError.
func Connect(ctx context.Context, host string) (*SDKClient, error) {
	c, err := NewSDKClientWithHost(host)
	if err != nil {
		return nil, &ConnectionError{Host: host, Err: err}
	}
	if _, err := c.cli.Ping(ctx); err != nil {
		c.Close()
		return nil, &ConnectionError{Host: host, Err: err}
	}
	return c, nil
}
