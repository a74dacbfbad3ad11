package docker

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/errdefs"
	"golang.org/x/sync/errgroup"

	"github.com/ibhelm/service-agent/internal/config"
)

// composeProjectLabel is the label docker compose attaches to every
// container of a project. Multi-container services are discovered
// through it.
const composeProjectLabel = "com.docker.compose.project"

const (
	StatusRunning  = "running"
	StatusStopped  = "stopped"
	StatusPartial  = "partial"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// ContainerStatus is a point-in-time snapshot of one container. It is
// built fresh on every query and never persisted.
type ContainerStatus struct {
	Name          string   `json:"name"`
	Status        string   `json:"status"`
	ContainerID   string   `json:"container_id,omitempty"`
	Image         string   `json:"image,omitempty"`
	StartedAt     string   `json:"started_at,omitempty"`
	HealthStatus  string   `json:"health_status,omitempty"`
	ExitCode      *int     `json:"exit_code,omitempty"`
	RestartCount  int      `json:"restart_count"`
	CPUPercent    *float64 `json:"cpu_percent,omitempty"`
	MemoryMB      *float64 `json:"memory_mb,omitempty"`
	MemoryLimitMB *float64 `json:"memory_limit_mb,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// ServiceStatus aggregates the containers of one logical service.
type ServiceStatus struct {
	Name          string            `json:"name"`
	Status        string            `json:"status"`
	Containers    []ContainerStatus `json:"containers"`
	TotalMemoryMB *float64          `json:"total_memory_mb,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// ContainerName derives the container name docker compose gives the
// single container of a project: the project directory with slashes
// replaced by dashes, lowercased, plus the service suffix. Compose has
// applied this convention for years but does not document it as
// stable, so it lives here as one testable function.
func ContainerName(dir, suffix string) string {
	if suffix == "" {
		suffix = "app-1"
	}
	project := strings.ToLower(strings.ReplaceAll(dir, "/", "-"))
	return project + "-" + suffix
}

// ServiceStatus reports the aggregate status of a registered service.
// Engine-level failures are reported in the status record, never as an
// error.
func (m *Manager) ServiceStatus(ctx context.Context, name string) ServiceStatus {
	svc := m.services[name]

	if svc.MultiContainer {
		return m.multiContainerStatus(ctx, name)
	}
	return m.singleContainerStatus(ctx, name, svc)
}

// AllStatuses queries every registered service concurrently and
// returns the results in name order.
func (m *Manager) AllStatuses(ctx context.Context) []ServiceStatus {
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]ServiceStatus, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			statuses[i] = m.ServiceStatus(ctx, name)
			return nil
		})
	}
	g.Wait()
	return statuses
}

func (m *Manager) singleContainerStatus(ctx context.Context, name string, svc config.Service) ServiceStatus {
	target := ContainerName(svc.Dir, svc.ContainerSuffix)

	info, err := m.cli.ContainerInspect(ctx, target)
	if errdefs.IsNotFound(err) {
		return ServiceStatus{Name: name, Status: StatusNotFound}
	}
	if err != nil {
		return ServiceStatus{Name: name, Status: StatusError, Error: err.Error()}
	}

	cs := m.containerStatus(ctx, info)
	return ServiceStatus{
		Name:          name,
		Status:        cs.Status,
		Containers:    []ContainerStatus{cs},
		TotalMemoryMB: cs.MemoryMB,
	}
}

func (m *Manager) multiContainerStatus(ctx context.Context, name string) ServiceStatus {
	list, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+name)),
	})
	if err != nil {
		return ServiceStatus{Name: name, Status: StatusError, Error: err.Error()}
	}
	if len(list) == 0 {
		return ServiceStatus{Name: name, Status: StatusNotFound}
	}

	containers := make([]ContainerStatus, 0, len(list))
	for _, c := range list {
		info, err := m.cli.ContainerInspect(ctx, c.ID)
		if err != nil {
			containers = append(containers, ContainerStatus{
				Name:   containerName(c),
				Status: StatusError,
				Error:  err.Error(),
			})
			continue
		}
		containers = append(containers, m.containerStatus(ctx, info))
	}

	return aggregate(name, containers)
}

// aggregate derives the overall service status: running iff every
// container runs, stopped iff none do, partial otherwise.
func aggregate(name string, containers []ContainerStatus) ServiceStatus {
	if len(containers) == 0 {
		return ServiceStatus{Name: name, Status: StatusNotFound}
	}

	running := 0
	total := 0.0
	for _, c := range containers {
		if c.Status == StatusRunning {
			running++
		}
		if c.MemoryMB != nil {
			total += *c.MemoryMB
		}
	}

	status := StatusPartial
	switch running {
	case len(containers):
		status = StatusRunning
	case 0:
		status = StatusStopped
	}

	s := ServiceStatus{Name: name, Status: status, Containers: containers}
	if total > 0 {
		rounded := round1(total)
		s.TotalMemoryMB = &rounded
	}
	return s
}

func (m *Manager) containerStatus(ctx context.Context, info types.ContainerJSON) ContainerStatus {
	cs := ContainerStatus{
		Name:         strings.TrimPrefix(info.Name, "/"),
		ContainerID:  shortID(info.ID),
		RestartCount: info.RestartCount,
	}
	if info.Config != nil {
		cs.Image = info.Config.Image
	}
	if info.State != nil {
		cs.Status = info.State.Status
		cs.StartedAt = info.State.StartedAt
		exit := info.State.ExitCode
		cs.ExitCode = &exit
		if info.State.Health != nil {
			cs.HealthStatus = info.State.Health.Status
		}
	}

	// Resource usage only makes sense for running containers. A failed
	// stats call just leaves the numeric fields unset.
	if cs.Status == StatusRunning {
		m.sampleStats(ctx, info.ID, &cs)
	}
	return cs
}

func (m *Manager) sampleStats(ctx context.Context, id string, cs *ContainerStatus) {
	reader, err := m.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		m.logger.Debug().Err(err).Str("container", id).Msg("stats snapshot failed")
		return
	}
	defer reader.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(reader.Body).Decode(&stats); err != nil {
		m.logger.Debug().Err(err).Str("container", id).Msg("stats decode failed")
		return
	}

	cs.CPUPercent = cpuPercent(&stats)
	if stats.MemoryStats.Usage > 0 {
		mb := round1(megabytes(stats.MemoryStats.Usage))
		cs.MemoryMB = &mb
	}
	if stats.MemoryStats.Limit > 0 {
		mb := round1(megabytes(stats.MemoryStats.Limit))
		cs.MemoryLimitMB = &mb
	}
}

// cpuPercent computes CPU usage from a one-shot stats snapshot:
// (cpu delta / system delta) * online CPUs * 100, rounded to two
// decimals. Nil when the system delta is not positive.
func cpuPercent(stats *container.StatsResponse) *float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta <= 0 {
		return nil
	}

	cpus := float64(stats.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = 1
	}

	pct := math.Round(cpuDelta/systemDelta*cpus*100*100) / 100
	return &pct
}

func megabytes(b uint64) float64 {
	return float64(b) / (1024 * 1024)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	return shortID(c.ID)
}
