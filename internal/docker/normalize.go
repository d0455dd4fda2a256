package docker

import (
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"
)

const (
	shortIDLen  = 12
	noneLabel   = "<none>"
	emptyMarker = "--"
)

func toContainer(c container.Summary) Container {
	return Container{
		ID:     shortID(c.ID),
		Name:   containerName(c.Names),
		Image:  orDefault(c.Image, "unknown"),
		Status: orDefault(c.Status, "unknown"),
		Ports:  formatPorts(c.Ports),
		State:  ParseRuntimeState(string(c.State)),
	}
}

func toImage(img image.Summary) Image {
	repo, tag := splitRepoTag(img.RepoTags)
	return Image{
		ID:         img.ID,
		Repository: repo,
		Tag:        tag,
		Size:       FormatSize(img.Size),
	}
}

func toVolume(v *volume.Volume) Volume {
	return Volume{
		Name:       v.Name,
		Driver:     v.Driver,
		Mountpoint: v.Mountpoint,
		Size:       emptyMarker,
	}
}

func shortID(id string) string {
	if id == "" {
		return "unknown"
	}
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// containerName returns the first name with Docker's "/" prefix removed.
func containerName(names []string) string {
	if len(names) == 0 {
		return "unnamed"
	}
	return strings.TrimLeft(names[0], "/")
}

// formatPorts renders "public:private" pairs, or just the private port when
// nothing is published on the host.
func formatPorts(ports []container.Port) string {
	if len(ports) == 0 {
		return emptyMarker
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		private := strconv.FormatUint(uint64(p.PrivatePort), 10)
		if p.PublicPort == 0 {
			parts = append(parts, private)
			continue
		}
		parts = append(parts, strconv.FormatUint(uint64(p.PublicPort), 10)+":"+private)
	}
	return strings.Join(parts, ", ")
}

// splitRepoTag splits the first "repo:tag" entry on ':' and takes the first
// two segments. A registry host with a port ("host:5000/app:1") therefore
// yields repository "host" and tag "5000/app".
func splitRepoTag(tags []string) (repo, tag string) {
	if len(tags) == 0 {
		return noneLabel, noneLabel
	}
	parts := strings.Split(tags[0], ":")
	repo = parts[0]
	tag = noneLabel
	if len(parts) > 1 {
		tag = parts[1]
	}
	return repo, tag
}

// FormatSize formats a byte count with binary units and one decimal:
// "512B", "1.5KB", "10.0MB", "1.2GB".
func FormatSize(size int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case size >= gb:
		return strconv.FormatFloat(float64(size)/gb, 'f', 1, 64) + "GB"
	case size >= mb:
		return strconv.FormatFloat(float64(size)/mb, 'f', 1, 64) + "MB"
	case size >= kb:
		return strconv.FormatFloat(float64(size)/kb, 'f', 1, 64) + "KB"
	default:
		return strconv.FormatInt(size, 10) + "B"
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
