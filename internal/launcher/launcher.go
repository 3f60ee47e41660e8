// Package launcher starts the web application's development server the way
// the deployment's shell wrapper does: load the generated env file, merge it
// over the process environment and exec the management command, forwarding
// extra arguments verbatim and propagating the child's exit status.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Launcher holds the pieces needed to start the development server.
type Launcher struct {
	// EnvFile is the generated environment file to source. Required.
	EnvFile string
	// Dir is the working directory for the child, normally the project
	// root. Empty means the directory holding EnvFile.
	Dir string
	// Command is the server command to run, e.g.
	// ["python", "manage.py", "runserver"]. Required.
	Command []string
	// Stdout and Stderr default to the parent's streams.
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// Run starts the server process with args appended to Command. It blocks
// until the child exits and returns its exit code. SIGINT and SIGTERM are
// forwarded to the child; a child killed by a signal maps to 128+signal,
// matching shell conventions.
func (l *Launcher) Run(ctx context.Context, args []string) (int, error) {
	if len(l.Command) == 0 {
		return -1, fmt.Errorf("launcher: no server command configured")
	}

	env, err := l.loadEnvironment()
	if err != nil {
		return -1, err
	}

	dir := l.Dir
	if dir == "" {
		dir = filepath.Dir(l.EnvFile)
	}

	full := append(append([]string{}, l.Command...), args...)
	cmd := exec.CommandContext(ctx, full[0], full[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	l.Logger.Info("Starting development server",
		zap.Strings("command", full),
		zap.String("dir", dir),
		zap.String("env_file", l.EnvFile),
	)

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %q: %w", full[0], err)
	}

	// Сигналы пробрасываем в дочерний процесс, сами не завершаемся.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigCh:
			l.Logger.Info("Forwarding signal to server process", zap.String("signal", sig.String()))
			_ = cmd.Process.Signal(sig)
		case err := <-waitCh:
			return exitCode(err)
		}
	}
}

// loadEnvironment reads the env file and overlays it on the parent
// environment, the file winning on conflicts.
func (l *Launcher) loadEnvironment() ([]string, error) {
	if l.EnvFile == "" {
		return nil, fmt.Errorf("launcher: env file path is empty")
	}
	fileEnv, err := godotenv.Read(l.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load env file %s: %w", l.EnvFile, err)
	}

	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range fileEnv {
		merged[k] = v
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// exitCode maps a Wait error onto a shell-style exit code.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
