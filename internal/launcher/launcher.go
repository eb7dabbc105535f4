package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/replx/internal/portfile"
)

// Options describe how to start a local evaluator process.
type Options struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string
	// PortFile is the sidecar file the evaluator writes its listen
	// port to, relative to Dir when not absolute.
	PortFile string
	// StartupWait bounds how long to wait for the port file.
	StartupWait time.Duration
}

// Process is a started evaluator.
type Process struct {
	Port int
	cmd  *exec.Cmd
	log  pslog.Logger
}

// ErrNoCommand indicates launch was requested without a configured
// evaluator command.
var ErrNoCommand = errors.New("no evaluator command configured")

// Start launches the evaluator and waits until it announces its listen
// port through the port file. The stale port file, if any, is removed
// first so a port from a previous run is never trusted.
func Start(ctx context.Context, opts Options, logger pslog.Logger) (*Process, error) {
	if opts.Command == "" {
		return nil, ErrNoCommand
	}
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("launch evaluator: %w", err)
		}
		dir = wd
	}
	name := opts.PortFile
	if name == "" {
		name = portfile.DefaultName
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale port file: %w", err)
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = dir
	cmd.Env = mergedEnv(opts.Env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch evaluator: %w", err)
	}
	log := logger.With("pid", cmd.Process.Pid)
	log.Info("evaluator launched", "command", opts.Command)

	wait := opts.StartupWait
	if wait <= 0 {
		wait = 30 * time.Second
	}
	port, err := awaitPort(ctx, path, wait)
	if err != nil {
		if killErr := cmd.Process.Kill(); killErr != nil {
			log.Warn("kill after failed startup", "err", killErr)
		}
		if waitErr := cmd.Wait(); waitErr != nil {
			log.Debug("evaluator exit", "err", waitErr)
		}
		return nil, err
	}
	log.Info("evaluator ready", "port", port)
	return &Process{Port: port, cmd: cmd, log: log}, nil
}

// Stop terminates the evaluator process and reaps it.
func (p *Process) Stop() error {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	if err := p.cmd.Wait(); err != nil {
		p.log.Debug("evaluator exit", "err", err)
	}
	return nil
}

func awaitPort(ctx context.Context, path string, wait time.Duration) (int, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		port, err := portfile.Read(path)
		if err == nil {
			return port, nil
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("evaluator did not announce a port within %s: %w", wait, err)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+extra[key])
	}
	return env
}
