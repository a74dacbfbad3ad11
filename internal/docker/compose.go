package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// Start brings a service up with its effective configuration injected
// into the compose environment.
func (m *Manager) Start(ctx context.Context, name string, env map[string]string) (bool, string) {
	ok, stdout, stderr := m.runCompose(ctx, name, []string{"up", "-d"}, env)
	return ok, stdout + stderr
}

// Stop takes a service down.
func (m *Manager) Stop(ctx context.Context, name string) (bool, string) {
	ok, stdout, stderr := m.runCompose(ctx, name, []string{"down"}, nil)
	return ok, stdout + stderr
}

// Restart force-recreates a service's containers with fresh config.
func (m *Manager) Restart(ctx context.Context, name string, env map[string]string) (bool, string) {
	ok, stdout, stderr := m.runCompose(ctx, name, []string{"up", "-d", "--force-recreate"}, env)
	return ok, stdout + stderr
}

// Update pulls the service's repository and rebuilds it. A failed pull
// short-circuits before compose runs.
func (m *Manager) Update(ctx context.Context, name string) (bool, string) {
	svc := m.services[name]
	dir := filepath.Join(m.basePath, svc.Dir)
	if _, err := os.Stat(dir); err != nil {
		return false, fmt.Sprintf("service path not found: %s", dir)
	}

	m.logger.Info().Str("service", name).Str("dir", dir).Msg("pulling repository")

	var gitOut, gitErr bytes.Buffer
	git := exec.CommandContext(ctx, "git", "pull")
	git.Dir = dir
	git.Stdout = &gitOut
	git.Stderr = &gitErr
	if err := git.Run(); err != nil {
		msg := gitErr.String()
		if msg == "" {
			msg = err.Error()
		}
		return false, "Git pull failed: " + msg
	}

	ok, stdout, stderr := m.runCompose(ctx, name, []string{"up", "-d", "--build", "--force-recreate"}, nil)
	return ok, fmt.Sprintf("Git: %s\nCompose: %s", gitOut.String(), stdout+stderr)
}

// runCompose invokes docker compose for a registered service with the
// service directory as working directory. Exit code zero is the sole
// success criterion; stdout and stderr are captured separately.
func (m *Manager) runCompose(ctx context.Context, name string, args []string, env map[string]string) (bool, string, string) {
	svc := m.services[name]
	dir := filepath.Join(m.basePath, svc.Dir)
	if _, err := os.Stat(dir); err != nil {
		return false, "", fmt.Sprintf("service path not found: %s", dir)
	}

	cmd := exec.CommandContext(ctx, "docker", composeArgs(svc.Compose, args)...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(os.Environ(), env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	m.logger.Info().Str("service", name).Strs("args", args).Msg("running compose command")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The binary itself failed to run; surface that alongside
			// whatever compose managed to write.
			fmt.Fprintf(&stderr, "docker compose: %v", err)
		}
		return false, stdout.String(), stderr.String()
	}
	return true, stdout.String(), stderr.String()
}

// composeArgs builds the compose argument list: one -f per configured
// file, order preserved, then the subcommand.
func composeArgs(files, args []string) []string {
	out := []string{"compose"}
	for _, f := range files {
		out = append(out, "-f", f)
	}
	return append(out, args...)
}

// mergeEnv overlays the overrides on top of the parent environment.
// exec.Cmd uses the last occurrence of a duplicated key.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(overrides))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
