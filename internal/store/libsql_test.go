package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/atelier-studio/atelier/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	path := "file:" + filepath.Join(t.TempDir(), "test.db")
	s, err := NewLibSQLStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{ID: "run-1", Label: "portrait", NodeCount: 4, EdgeCount: 3}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != RunStatusRunning {
		t.Errorf("default status: %s", got.Status)
	}
	if got.Label != "portrait" {
		t.Errorf("label: %s", got.Label)
	}
	if got.CompletedAt != nil {
		t.Error("fresh run must not be completed")
	}

	if err := s.CompleteRun(ctx, "run-1", RunStatusCompleted, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err = s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != RunStatusCompleted || got.CompletedAt == nil {
		t.Errorf("run not completed: %+v", got)
	}
}

func TestCompleteRunWithError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, &Run{ID: "run-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CompleteRun(ctx, "run-1", RunStatusFailed, "backend unavailable"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != RunStatusFailed || got.Error != "backend unavailable" {
		t.Errorf("failure not recorded: %+v", got)
	}
}

func TestCompleteRunNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.CompleteRun(context.Background(), "missing", RunStatusCompleted, "")
	var aerr *schema.AtelierError
	if !errors.As(err, &aerr) || aerr.Code != schema.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	var aerr *schema.AtelierError
	if !errors.As(err, &aerr) || aerr.Code != schema.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListRunsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, r := range []*Run{
		{ID: "r1", Label: "a"},
		{ID: "r2", Label: "a"},
		{ID: "r3", Label: "b"},
	} {
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.ID, err)
		}
	}
	if err := s.CompleteRun(ctx, "r1", RunStatusCompleted, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}

	byLabel, err := s.ListRuns(ctx, RunFilter{Label: "a"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byLabel) != 2 {
		t.Errorf("label filter: got %d runs", len(byLabel))
	}

	running, err := s.ListRuns(ctx, RunFilter{Status: RunStatusRunning})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(running) != 2 {
		t.Errorf("status filter: got %d runs", len(running))
	}

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit: got %d runs", len(limited))
	}
}
