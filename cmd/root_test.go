// Copyright 2026 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.yaml.in/yaml/v3"

	"github.com/open-policy-agent/atom/v1/metrics"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand()

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestInternStdinJSON(t *testing.T) {
	out, _, err := execute(t, "a\nb\na\n\n", "intern", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}

	var got report
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unexpected output %q: %v", out, err)
	}

	want := report{
		Lines:         4,
		Unique:        3,
		BytesRead:     3,
		BytesRetained: 2,
		Entries:       3,
		Live:          3,
		Metrics:       metrics.Snapshot{Hits: 2, Misses: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}
}

func TestInternFilesYAML(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "one.txt")
	f2 := filepath.Join(dir, "two.txt")
	if err := os.WriteFile(f1, []byte("data\ninput\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f2, []byte("data\nsystem\ndata\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "", "intern", "--hashed-keys", "--format", "yaml", f1, f2)
	if err != nil {
		t.Fatal(err)
	}

	var got report
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unexpected output %q: %v", out, err)
	}

	want := report{
		Lines:         5,
		Unique:        3,
		BytesRead:     23,
		BytesRetained: 15,
		Entries:       4,
		Live:          4,
		Metrics:       metrics.Snapshot{Hits: 2, Misses: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}
}

func TestInternPaths(t *testing.T) {
	in := "/data/users/0\n/data/users/1\n/data/us%65rs/0\n"
	out, _, err := execute(t, in, "intern", "--paths", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}

	var got report
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unexpected output %q: %v", out, err)
	}

	want := report{
		Lines:         3,
		Unique:        4,
		BytesRead:     41,
		BytesRetained: 11,
		Entries:       5,
		Live:          5,
		Metrics:       metrics.Snapshot{Hits: 5, Misses: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}
}

func TestInternInvalidPath(t *testing.T) {
	_, _, err := execute(t, "/ok\nrelative\n", "intern", "--paths")
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected invalid path error, got %v", err)
	}
}

func TestInternTable(t *testing.T) {
	out, _, err := execute(t, "x\nx\n", "intern")
	if err != nil {
		t.Fatal(err)
	}
	for _, exp := range []string{"METRIC", "unique", "bytes retained", "hits"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(exp)) {
			t.Errorf("expected %q in output:\n%s", exp, out)
		}
	}
}

func TestInternMissingFile(t *testing.T) {
	_, _, err := execute(t, "", "intern", filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestInternBadFormat(t *testing.T) {
	_, _, err := execute(t, "", "intern", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestInternConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "registry:\n  retain: -1\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "", "-c", path, "intern")
	if err == nil || !strings.Contains(err.Error(), "registry.retain") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInternDebugLogging(t *testing.T) {
	_, stderr, err := execute(t, "a\n", "--log-level", "debug", "--log-format", "json", "intern", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}

	var entry map[string]any
	line, _, _ := strings.Cut(stderr, "\n")
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unexpected log output %q: %v", stderr, err)
	}
	if entry["msg"] != "Finished interning input." || entry["lines"] != float64(1) {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestBenchHold(t *testing.T) {
	out, _, err := execute(t, "", "--log-level", "error", "bench",
		"--workers", "4", "--iterations", "100", "--keys", "8", "--hold", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}

	var got report
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unexpected output %q: %v", out, err)
	}

	if got.Operations != 400 {
		t.Fatalf("expected 400 operations, got %d", got.Operations)
	}
	if got.Metrics.Hits+got.Metrics.Misses != 400 {
		t.Fatalf("expected every operation to be a hit or a miss, got %+v", got.Metrics)
	}
	if got.Metrics.Misses > 8 || got.Metrics.Resurrections != 0 {
		t.Fatalf("expected at most one miss per key while atoms are held, got %+v", got.Metrics)
	}
	if got.Entries > 9 {
		t.Fatalf("expected at most 9 entries, got %d", got.Entries)
	}
}

func TestBenchAutoPrune(t *testing.T) {
	out, _, err := execute(t, "", "--log-level", "error", "--auto-prune", "bench",
		"--workers", "2", "--iterations", "500", "--keys", "4", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}

	var got report
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unexpected output %q: %v", out, err)
	}
	if diff := cmp.Diff(report{Operations: 1000, Unique: 4, BytesRead: 20}, got,
		cmpopts.IgnoreFields(report{}, "Entries", "Live", "ElapsedNS", "Metrics")); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}
	if got.Entries > 5 {
		t.Fatalf("expected at most 5 entries, got %d", got.Entries)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, exp := range []string{"Version:", "Go Version:", "Platform:"} {
		if !strings.Contains(out, exp) {
			t.Errorf("expected %q in output:\n%s", exp, out)
		}
	}
}
