package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/citegraph/layoutd/pkg/errors"
)

func writeEdgeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edges.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCheck(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newCheckCmd()
	cmd.SetContext(withLogger(context.Background(), newLogger(io.Discard, log.ErrorLevel)))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestCheckRejectsSelfLoopOnlyInput(t *testing.T) {
	// Every edge is filtered out before the graph is built; the command
	// must report an empty graph instead of running diagnostics on nothing.
	path := writeEdgeFile(t, `[
		{"source_id": "a", "target_id": "a"},
		{"source_id": "b", "target_id": "b"}
	]`)

	err := runCheck(t, "--edges", path)
	if err == nil {
		t.Fatal("check should fail when every edge is invalid")
	}
	if !errors.Is(err, errors.ErrCodeEmptyGraph) {
		t.Errorf("code = %q, want EMPTY_GRAPH", errors.GetCode(err))
	}
}

func TestCheckCleanChain(t *testing.T) {
	path := writeEdgeFile(t, `[
		{"source_id": "a", "target_id": "b", "weight": 1},
		{"source_id": "b", "target_id": "c", "weight": 1}
	]`)

	if err := runCheck(t, "--edges", path, "--strict"); err != nil {
		t.Fatalf("check on a clean chain: %v", err)
	}
}

func TestCheckStrictFailsOnCycle(t *testing.T) {
	path := writeEdgeFile(t, `[
		{"source_id": "a", "target_id": "b", "weight": 1},
		{"source_id": "b", "target_id": "c", "weight": 1},
		{"source_id": "c", "target_id": "a", "weight": 1}
	]`)

	if err := runCheck(t, "--edges", path, "--strict"); err == nil {
		t.Fatal("strict check on a cyclic graph should fail")
	}
	if err := runCheck(t, "--edges", path); err != nil {
		t.Fatalf("non-strict check should only warn: %v", err)
	}
}
