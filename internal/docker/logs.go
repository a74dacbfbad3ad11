package docker

import (
	"bytes"
	"context"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// Logs returns the last lines of a service's container log with
// timestamps. Failures are reported as descriptive text, not errors:
// the caller always gets something to show.
func (m *Manager) Logs(ctx context.Context, name string, lines int, containerName string) string {
	svc := m.services[name]

	target := containerName
	if target == "" {
		if svc.MultiContainer {
			return "Multi-container service. Specify the container parameter."
		}
		target = ContainerName(svc.Dir, svc.ContainerSuffix)
	}

	info, err := m.cli.ContainerInspect(ctx, target)
	if errdefs.IsNotFound(err) {
		return "Container not found: " + target
	}
	if err != nil {
		return "Error getting logs: " + err.Error()
	}

	rc, err := m.cli.ContainerLogs(ctx, target, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       strconv.Itoa(lines),
	})
	if err != nil {
		return "Error getting logs: " + err.Error()
	}
	defer rc.Close()

	var buf bytes.Buffer
	if info.Config != nil && info.Config.Tty {
		// TTY containers produce a raw stream with no multiplex framing.
		if _, err := buf.ReadFrom(rc); err != nil {
			return "Error getting logs: " + err.Error()
		}
	} else if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return "Error getting logs: " + err.Error()
	}
	return buf.String()
}
