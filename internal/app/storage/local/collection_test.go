package local

import (
	"context"
	"testing"
	"time"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/job"
	"github.com/studyflow-app/studyflow-core/internal/app/storage"
	"github.com/studyflow-app/studyflow-core/internal/app/storage/localkv"
)

func newJobCollection() *Collection[job.Job] {
	return New(localkv.NewMemory(), storage.DomainJobs, func(a, b job.Job) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func makeJob(id, userID string, age time.Duration) job.Job {
	return job.Job{
		ID:        id,
		UserID:    userID,
		ToolName:  "summarize",
		Status:    job.StatusQueued,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestListEmptyCollection(t *testing.T) {
	col := newJobCollection()

	recs, err := col.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", recs)
	}
}

func TestAppendAndListOrdering(t *testing.T) {
	ctx := context.Background()
	col := newJobCollection()

	if err := col.Append(ctx, makeJob("old", "u1", 2*time.Hour)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := col.Append(ctx, makeJob("new", "u1", time.Minute)); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := col.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "new" || recs[1].ID != "old" {
		t.Fatalf("expected newest first, got %s then %s", recs[0].ID, recs[1].ID)
	}
}

func TestCollectionsArePerUser(t *testing.T) {
	ctx := context.Background()
	col := newJobCollection()

	if err := col.Append(ctx, makeJob("a", "u1", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := col.Append(ctx, makeJob("b", "u2", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	u1, _ := col.List(ctx, "u1")
	u2, _ := col.List(ctx, "u2")
	if len(u1) != 1 || u1[0].ID != "a" {
		t.Fatalf("u1 sees %#v", u1)
	}
	if len(u2) != 1 || u2[0].ID != "b" {
		t.Fatalf("u2 sees %#v", u2)
	}
}

func TestPatchMergesFields(t *testing.T) {
	ctx := context.Background()
	col := newJobCollection()

	if err := col.Append(ctx, makeJob("j1", "u1", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := col.Patch(ctx, "j1", map[string]any{"status": "processing", "progress": 10}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	recs, _ := col.List(ctx, "u1")
	if recs[0].Status != job.StatusProcessing {
		t.Fatalf("status not patched: %s", recs[0].Status)
	}
	if recs[0].Progress != 10 {
		t.Fatalf("progress not patched: %d", recs[0].Progress)
	}
	if recs[0].ToolName != "summarize" {
		t.Fatalf("untouched field changed: %s", recs[0].ToolName)
	}
}

func TestPatchUnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	col := newJobCollection()

	if err := col.Append(ctx, makeJob("j1", "u1", 0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := col.Patch(ctx, "ghost", map[string]any{"progress": 50}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	recs, _ := col.List(ctx, "u1")
	if recs[0].Progress != 0 {
		t.Fatalf("unexpected write: %d", recs[0].Progress)
	}
}

func TestClearRemovesOnlyOneUser(t *testing.T) {
	ctx := context.Background()
	col := newJobCollection()

	_ = col.Append(ctx, makeJob("a", "u1", 0))
	_ = col.Append(ctx, makeJob("b", "u2", 0))

	if err := col.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	u1, _ := col.List(ctx, "u1")
	u2, _ := col.List(ctx, "u2")
	if len(u1) != 0 {
		t.Fatalf("u1 not cleared: %#v", u1)
	}
	if len(u2) != 1 {
		t.Fatalf("u2 affected by clear: %#v", u2)
	}
}
