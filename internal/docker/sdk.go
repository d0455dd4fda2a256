package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
)

// SDKClient implements Client using the Docker Engine SDK.
type SDKClient struct {
	cli *client.Client
}

// NewSDKClientWithHost creates an SDKClient connected to a specific host.
// The host parameter should be a full URI like "unix:///path/to/docker.sock".
// TLS settings are still taken from the environment.
func NewSDKClientWithHost(host string) (*SDKClient, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker sdk with host: %w", err)
	}
	return &SDKClient{cli: cli}, nil
}

// Host returns the daemon endpoint the client talks to.
func (s *SDKClient) Host() string {
	return s.cli.DaemonHost()
}

func (s *SDKClient) ListContainers(ctx context.Context) ([]Container, error) {
	raw, err := s.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	result := make([]Container, 0, len(raw))
	for _, c := range raw {
		result = append(result, toContainer(c))
	}
	return result, nil
}

func (s *SDKClient) ListImages(ctx context.Context) ([]Image, error) {
	raw, err := s.cli.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("dangling", "false")),
	})
	if err != nil {
		return nil, fmt.Errorf("image list: %w", err)
	}

	result := make([]Image, 0, len(raw))
	for _, img := range raw {
		result = append(result, toImage(img))
	}
	return result, nil
}

func (s *SDKClient) ListVolumes(ctx context.Context) ([]Volume, error) {
	resp, err := s.cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("volume list: %w", err)
	}

	result := make([]Volume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v == nil {
			continue
		}
		result = append(result, toVolume(v))
	}
	return result, nil
}

func (s *SDKClient) StartContainer(ctx context.Context, id string) error {
	if err := s.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("container start: %w", err)
	}
	return nil
}

func (s *SDKClient) StopContainer(ctx context.Context, id string) error {
	if err := s.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("container stop: %w", err)
	}
	return nil
}

func (s *SDKClient) Events(ctx context.Context) (<-chan Event, <-chan error) {
	out := make(chan Event, 64)
	outErr := make(chan error, 1)

	opts := events.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("type", string(events.ContainerEventType)),
			filters.Arg("type", string(events.ImageEventType)),
			filters.Arg("type", string(events.VolumeEventType)),
		),
	}

	msgCh, errCh := s.cli.Events(ctx, opts)

	go func() {
		defer close(out)
		defer close(outErr)

		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}

				// Exec and health noise would trigger container re-lists
				// without any visible change.
				if msg.Type == events.ContainerEventType {
					switch msg.Action {
					case events.ActionStart, events.ActionStop, events.ActionDie,
						events.ActionPause, events.ActionUnPause, events.ActionRestart,
						events.ActionCreate, events.ActionDestroy, events.ActionRename:
					default:
						continue
					}
				}

				evt := Event{
					Type:    string(msg.Type),
					Action:  string(msg.Action),
					ActorID: msg.Actor.ID,
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}

			case err, ok := <-errCh:
				if !ok {
					return
				}
				select {
				case outErr <- err:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	return out, outErr
}

func (s *SDKClient) Close() error {
	return s.cli.Close()
}

// Ensure SDKClient implements Client at compile time.
var _ Client = (*SDKClient)(nil)
