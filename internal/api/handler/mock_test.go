package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ibhelm/service-agent/internal/docker"
	"github.com/ibhelm/service-agent/internal/supabase"
)

// mockManager implements ServiceManager for handler tests.
type mockManager struct {
	mock.Mock
}

func (m *mockManager) AllStatuses(ctx context.Context) []docker.ServiceStatus {
	args := m.Called(ctx)
	return args.Get(0).([]docker.ServiceStatus)
}

func (m *mockManager) ServiceStatus(ctx context.Context, name string) docker.ServiceStatus {
	args := m.Called(ctx, name)
	return args.Get(0).(docker.ServiceStatus)
}

func (m *mockManager) Logs(ctx context.Context, name string, lines int, containerName string) string {
	args := m.Called(ctx, name, lines, containerName)
	return args.String(0)
}

func (m *mockManager) Start(ctx context.Context, name string, env map[string]string) (bool, string) {
	args := m.Called(ctx, name, env)
	return args.Bool(0), args.String(1)
}

func (m *mockManager) Stop(ctx context.Context, name string) (bool, string) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.String(1)
}

func (m *mockManager) Restart(ctx context.Context, name string, env map[string]string) (bool, string) {
	args := m.Called(ctx, name, env)
	return args.Bool(0), args.String(1)
}

func (m *mockManager) Update(ctx context.Context, name string) (bool, string) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.String(1)
}

// mockStore implements ConfigStore for handler tests.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetServiceConfig(ctx context.Context, service string) (map[string]string, error) {
	args := m.Called(ctx, service)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *mockStore) GetAll(ctx context.Context) ([]supabase.ConfigEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]supabase.ConfigEntry), args.Error(1)
}

func (m *mockStore) GetByKey(ctx context.Context, key string) (*supabase.ConfigEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supabase.ConfigEntry), args.Error(1)
}

func (m *mockStore) Upsert(ctx context.Context, p supabase.UpsertParams) (*supabase.ConfigEntry, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supabase.ConfigEntry), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) LogOperation(ctx context.Context, op supabase.Operation) error {
	return m.Called(ctx, op).Error(0)
}
