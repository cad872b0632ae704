package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"--version"}, &out)

	if code != 0 {
		t.Fatalf("run(--version) = %d, want 0", code)
	}
	if !strings.Contains(out.String(), "diagrammaton version") {
		t.Errorf("output = %q, want version string", out.String())
	}
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"--help"}, &out)

	if code != 0 {
		t.Fatalf("run(--help) = %d, want 0", code)
	}
	for _, want := range []string{"serve", "migrate", "--version"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	code := run([]string{"frobnicate"}, &out)

	if code != 2 {
		t.Fatalf("run(frobnicate) = %d, want 2", code)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("output = %q, want unknown command notice", out.String())
	}
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"--no-such-flag"}, &out); code != 2 {
		t.Fatalf("run(--no-such-flag) = %d, want 2", code)
	}
}

func TestRun_Migrate(t *testing.T) {
	t.Setenv("DIAGRAMMATON_DB", t.TempDir()+"/test.db")

	var out bytes.Buffer
	if code := run([]string{"migrate"}, &out); code != 0 {
		t.Fatalf("run(migrate) = %d, want 0", code)
	}
}
