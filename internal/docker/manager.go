package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"github.com/ibhelm/service-agent/internal/config"
)

// EngineClient is the subset of the Docker Engine API the manager uses.
type EngineClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerStatsOneShot(ctx context.Context, containerID string) (container.StatsResponseReader, error)
	ContainerLogs(ctx context.Context, container string, options container.LogsOptions) (io.ReadCloser, error)
}

// Manager reads container state from the Docker Engine and drives
// docker compose and git for the services in the static registry.
type Manager struct {
	cli      EngineClient
	services map[string]config.Service
	basePath string
	logger   zerolog.Logger
}

func NewManager(cli EngineClient, cfg *config.Config, logger zerolog.Logger) *Manager {
	return &Manager{
		cli:      cli,
		services: cfg.Services,
		basePath: cfg.ServicesBasePath,
		logger:   logger,
	}
}

// Connect creates a Docker Engine client from the environment.
func Connect() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return cli, nil
}
