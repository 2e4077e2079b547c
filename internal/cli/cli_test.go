package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("IMPACT_CONFIG", "")
	t.Setenv("IMPACT_REDIS_ADDR", "")
	t.Setenv("IMPACT_STORE_DRIVER", "")

	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })

	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	err := root.Execute()
	return buf.String(), err
}

func TestClassify(t *testing.T) {
	dot := filepath.Join(t.TempDir(), "plan.dot")
	got, err := execute(t, "classify", "doi:10.1371/journal.pone.0000001", "--dot", dot)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"article", "metrics", dot} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	data, err := os.ReadFile(dot)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "digraph plan {") {
		t.Errorf("DOT file = %q", data)
	}
}

func TestClassifyBadAlias(t *testing.T) {
	if _, err := execute(t, "classify", "no-colon"); err == nil {
		t.Error("expected error for alias without namespace")
	}
}

func TestStatusNotFound(t *testing.T) {
	_, err := execute(t, "status", "missing")
	if !apperr.Is(err, apperr.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestCachePath(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "impact.toml")
	if err := os.WriteFile(cfg, []byte("[cache]\nbackend = \"file\"\ndir = \""+filepath.ToSlash(dir)+"/responses\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := execute(t, "--config", cfg, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(got) != filepath.ToSlash(dir)+"/responses" {
		t.Errorf("cache path = %q", got)
	}
}

func TestCacheClear(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	got, err := execute(t, "cache", "clear")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Cache is empty") {
		t.Errorf("output = %q", got)
	}
}

func TestVersion(t *testing.T) {
	got, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "version: dev") {
		t.Errorf("output = %q", got)
	}
}

func TestCompletion(t *testing.T) {
	got, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "impactrefresh") {
		t.Error("bash completion should mention the command name")
	}
}

func TestCompletionShells(t *testing.T) {
	for _, shell := range []string{"zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			got, err := execute(t, "completion", shell)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, "impactrefresh") {
				t.Errorf("%s completion should mention the command name", shell)
			}
		})
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for an unsupported shell")
	}
}
