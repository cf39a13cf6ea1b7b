// Package testsupport provides shared helpers for testscript-based CLI
// tests: building the tasklist binary once per run and hosting an in-process
// portal server that scripts can point the binary at.
package testsupport

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mjpery-beep/tasklist/portal"
	"github.com/mjpery-beep/tasklist/tasklist"
	"github.com/rogpeppe/go-internal/testscript"
)

var (
	buildOnce    sync.Once
	tasklistPath string
	buildErr     error
)

// BuildTasklist builds the tasklist binary once and returns its path.
func BuildTasklist(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "tasklist-bin-")
		if err != nil {
			buildErr = err
			return
		}

		tasklistPath = filepath.Join(binDir, "tasklist")
		cmd := exec.Command("go", "build", "-o", tasklistPath, "./cmd/tasklist")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build tasklist: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return tasklistPath
}

// SetupScriptEnv configures common environment variables for testscript.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("TASKLIST", BuildTasklist(t))

	homeDir := filepath.Join(env.WorkDir, "home")
	if err := os.MkdirAll(filepath.Join(homeDir, ".config", "tasklist"), 0o755); err != nil {
		return err
	}
	env.Setenv("HOME", homeDir)
	return nil
}

// CmdPortal starts an in-process portal server and exports its address as
// $PORTAL_URL. Usage: portal [seed] [token=VALUE]
func CmdPortal(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("portal does not support negation")
	}

	opts := portal.ServerOptions{
		ActingMember: tasklist.Member{ID: "m1", Name: "Robin", IsSelf: true},
		Members: []tasklist.Member{
			{ID: "m1", Name: "Robin", IsSelf: true},
			{ID: "m2", Name: "Sam"},
		},
	}
	for _, arg := range args {
		switch {
		case arg == "seed":
			due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
			opts.Projects = []tasklist.Project{{ID: "p1", Title: "Household"}}
			opts.Todos = []tasklist.Todo{
				{ID: "t1", Title: "Water plants", Status: tasklist.StatusOpen, Priority: 3, ProjectID: "p1"},
				{ID: "t2", Title: "Renew passport", Status: tasklist.StatusOpen, Priority: 5, DueDate: &due},
				{ID: "t3", Title: "Buy snacks", Status: tasklist.StatusCompleted, Priority: 2, ProjectID: "p1"},
			}
		case strings.HasPrefix(arg, "token="):
			opts.Token = strings.TrimPrefix(arg, "token=")
		default:
			ts.Fatalf("usage: portal [seed] [token=VALUE]")
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		ts.Fatalf("listen: %v", err)
	}

	server := &http.Server{Handler: portal.NewServer(opts).Handler()}
	go func() {
		_ = server.Serve(listener)
	}()
	ts.Defer(func() {
		_ = server.Close()
	})

	ts.Setenv("PORTAL_URL", "http://"+listener.Addr().String())
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
