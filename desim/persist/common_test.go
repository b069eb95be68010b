package persist_test

import (
	"context"
	"testing"

	"github.com/lattice-sim/desim/desim/persist"
)

// exerciseBackend runs the same contract test against any Backend
// implementation: Put/Get round-trip, ErrNotFound for missing keys, and
// prefix-filtered List. All backends (Mem, SQLite, MySQL) must satisfy it.
func exerciseBackend(t *testing.T, b persist.Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Get(ctx, "run.json"); err != persist.ErrNotFound {
		t.Fatalf("Get on empty backend: got %v, want ErrNotFound", err)
	}

	if err := b.Put(ctx, "run.json", []byte(`{"runId":"r1"}`)); err != nil {
		t.Fatalf("Put manifest: %v", err)
	}
	if err := b.Put(ctx, "dumps/1-t10.json", []byte(`{"base":{}}`)); err != nil {
		t.Fatalf("Put dump: %v", err)
	}
	if err := b.Put(ctx, "dumps/2-t25.json", []byte(`{"base":{}}`)); err != nil {
		t.Fatalf("Put dump: %v", err)
	}

	got, err := b.Get(ctx, "run.json")
	if err != nil {
		t.Fatalf("Get manifest: %v", err)
	}
	if string(got) != `{"runId":"r1"}` {
		t.Fatalf("Get manifest: got %q", got)
	}

	keys, err := b.List(ctx, "dumps/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("List dumps/: got %d keys, want 2: %v", len(keys), keys)
	}

	// Overwrite is last-write-wins.
	if err := b.Put(ctx, "run.json", []byte(`{"runId":"r2"}`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = b.Get(ctx, "run.json")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != `{"runId":"r2"}` {
		t.Fatalf("Get after overwrite: got %q", got)
	}
}
