package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(out) != "pollexec dev" {
		t.Errorf("version output = %q, want %q", out, "pollexec dev")
	}
}

func TestRunCmd(t *testing.T) {
	out, err := runCLI(t, "run", "--sleep", "0,20,5", "--blocking", "10", "--timeout", "5s")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}

	for _, want := range []string{"sleep-0ms done", "sleep-20ms done", "sleep-5ms done", "blocking-10ms done", "4 tasks completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "sleep-5ms done") > strings.Index(out, "sleep-20ms done") {
		t.Errorf("sleep-5ms should finish before sleep-20ms:\n%s", out)
	}
}

func TestRunCmd_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pollexec.yaml")
	content := "runtime:\n  name: cli-test\n  workers: 1\n  repoll_interval_ms: -1\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCLI(t, "--config", path, "run", "--sleep", "1,2", "--timeout", "5s")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 tasks completed") {
		t.Errorf("output = %s, want 2 tasks completed", out)
	}
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: trace\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := runCLI(t, "--config", path, "run", "--sleep", "1"); err == nil {
		t.Error("run with an invalid config should fail")
	}
}
