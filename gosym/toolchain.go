package gosym

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/logger"
)

// Locator finds the go binary that go/packages will drive.
//
// Strategies run in order: PATH lookup, $GOROOT/bin/go, then a login shell
// probe (`sh -lc "command -v go"`) for environments where the build host
// starts the generator with a stripped PATH. The function fields exist so
// tests can swap each strategy out.
type Locator struct {
	LookPath func(file string) (string, error)
	Getenv   func(key string) string
	Stat     func(name string) (os.FileInfo, error)
	Probe    func(ctx context.Context) (string, error)
}

// DefaultLocator returns a Locator backed by the real environment
func DefaultLocator() *Locator {
	return &Locator{
		LookPath: exec.LookPath,
		Getenv:   os.Getenv,
		Stat:     os.Stat,
		Probe:    shellProbe,
	}
}

// Locate returns the absolute path of the go binary
func (l *Locator) Locate(ctx context.Context) (string, error) {
	log := logger.Named("toolchain")

	if path, err := l.LookPath("go"); err == nil {
		log.Debugw("Found go on PATH", "path", path)
		return path, nil
	}

	if goroot := l.Getenv("GOROOT"); goroot != "" {
		candidate := filepath.Join(goroot, "bin", "go")
		if info, err := l.Stat(candidate); err == nil && !info.IsDir() {
			log.Debugw("Found go under GOROOT", "path", candidate)
			return candidate, nil
		}
	}

	path, err := l.Probe(ctx)
	if err == nil && path != "" {
		log.Debugw("Found go through login shell", "path", path)
		return path, nil
	}
	if err != nil {
		log.Debugw("Login shell probe failed", "error", err)
	}

	return "", errors.WithHint(
		errors.WithStack(errors.ErrToolchainNotFound),
		"install Go or put it on PATH; GOROOT/bin/go is also checked")
}

// Env returns os.Environ with the directory of goBinary first on PATH
func Env(goBinary string) []string {
	env := os.Environ()
	dir := filepath.Dir(goBinary)
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + dir + string(os.PathListSeparator) + strings.TrimPrefix(kv, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+dir)
}

func shellProbe(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-lc", "command -v go")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", errors.Wrap(err, "login shell probe")
	}
	path := strings.TrimSpace(stdout.String())
	if path == "" {
		return "", errors.New("login shell probe returned nothing")
	}
	return path, nil
}
