package jobs

import (
	"context"
	"testing"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/job"
	"github.com/studyflow-app/studyflow-core/internal/app/domain/user"
	"github.com/studyflow-app/studyflow-core/internal/app/services/identity"
	"github.com/studyflow-app/studyflow-core/internal/app/storage"
	"github.com/studyflow-app/studyflow-core/internal/app/storage/local"
	"github.com/studyflow-app/studyflow-core/internal/app/storage/localkv"
	"github.com/studyflow-app/studyflow-core/internal/config"
	"github.com/studyflow-app/studyflow-core/internal/errors"
)

func newTestService(t *testing.T) (*Service, *identity.Service) {
	t.Helper()
	kv := localkv.NewMemory()
	ident := identity.New(kv, localkv.NewMemory(), nil, nil, nil)
	col := local.New(kv, storage.DomainJobs, func(a, b job.Job) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	return New(col, ident, config.DefaultCostTable(), nil), ident
}

func signedIn(t *testing.T, ident *identity.Service) *user.User {
	t.Helper()
	u, err := ident.SignUp(context.Background(), "ada@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	return u
}

func TestAddJobRequiresSession(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AddJob(context.Background(), "summarize")
	if !errors.Is(err, errors.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestAddJobChargesAndQueues(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	j, err := svc.AddJob(ctx, "summarize")
	if err != nil {
		t.Fatalf("add job: %v", err)
	}
	if j.Status != job.StatusQueued || j.Progress != 0 {
		t.Fatalf("new job = %+v", j)
	}
	if u := ident.ResolveSync(); u.Credits != 4.5 {
		t.Fatalf("balance = %.2f", u.Credits)
	}

	jobs, err := svc.Jobs(ctx)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != j.ID {
		t.Fatalf("jobs = %#v", jobs)
	}
}

func TestAddJobRejectedWhenBroke(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	// Leave exactly one operation's worth of credits.
	half := 0.5
	if _, err := ident.Update(ctx, user.Changes{Credits: &half}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := svc.AddJob(ctx, "quiz"); err != nil {
		t.Fatalf("first job should succeed: %v", err)
	}
	_, err := svc.AddJob(ctx, "quiz")
	if !errors.Is(err, errors.ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}

	// The rejected operation must not leave a job behind.
	jobs, _ := svc.Jobs(ctx)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job after rejection, got %d", len(jobs))
	}
	if u := ident.ResolveSync(); u.Credits != 0 {
		t.Fatalf("balance = %.2f", u.Credits)
	}
}

func TestSubscribeReplaysSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	if _, err := svc.AddJob(ctx, "summarize"); err != nil {
		t.Fatalf("add job: %v", err)
	}

	var got []job.Job
	calls := 0
	cancel, err := svc.Subscribe(ctx, func(s []job.Job) {
		got = s
		calls++
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if calls != 1 {
		t.Fatalf("expected exactly one replay, got %d", calls)
	}
	if len(got) != 1 {
		t.Fatalf("replayed snapshot = %#v", got)
	}
}

func TestSubscribeBeforeAnyWriteReplaysEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	var got []job.Job
	calls := 0
	cancel, err := svc.Subscribe(ctx, func(s []job.Job) {
		got = s
		calls++
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if calls != 1 {
		t.Fatalf("expected one replay, got %d", calls)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil snapshot, got %#v", got)
	}
}

func TestMutationsNotifyWithFullSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	var snapshots [][]job.Job
	cancel, err := svc.Subscribe(ctx, func(s []job.Job) {
		snapshots = append(snapshots, s)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	j, err := svc.AddJob(ctx, "flashcards")
	if err != nil {
		t.Fatalf("add job: %v", err)
	}

	status := job.StatusProcessing
	progress := 10
	if err := svc.UpdateJob(ctx, j.ID, job.Patch{Status: &status, Progress: &progress}); err != nil {
		t.Fatalf("update job: %v", err)
	}

	// Replay, append, patch.
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
	}
	last := snapshots[len(snapshots)-1]
	if len(last) != 1 || last[0].Status != job.StatusProcessing || last[0].Progress != 10 {
		t.Fatalf("final snapshot = %#v", last)
	}
}

func TestUpdateJobUnknownID(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	status := job.StatusDone
	err := svc.UpdateJob(ctx, "no-such-job", job.Patch{Status: &status})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSignOutResetsFeed(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	ident.OnSignOut(svc.ResetFeed)
	signedIn(t, ident)

	if _, err := svc.AddJob(ctx, "summarize"); err != nil {
		t.Fatalf("add job: %v", err)
	}
	cancel, err := svc.Subscribe(ctx, func([]job.Job) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	if err := ident.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	// The replay snapshot is gone; a raw subscriber gets nothing until the
	// next publish.
	calls := 0
	svc.feed.Subscribe(func([]job.Job) { calls++ })
	if calls != 0 {
		t.Fatalf("expected no replay after sign-out, got %d calls", calls)
	}
}

func TestUpdateJobEmptyPatchIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	j, err := svc.AddJob(ctx, "explain")
	if err != nil {
		t.Fatalf("add job: %v", err)
	}

	calls := 0
	cancel, err := svc.Subscribe(ctx, func([]job.Job) { calls++ })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := svc.UpdateJob(ctx, j.ID, job.Patch{}); err != nil {
		t.Fatalf("update job: %v", err)
	}
	if calls != 1 {
		t.Fatalf("empty patch should not notify, got %d calls", calls)
	}
}

func TestUnsubscribedListenerStopsReceiving(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	calls := 0
	cancel, err := svc.Subscribe(ctx, func([]job.Job) { calls++ })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	if _, err := svc.AddJob(ctx, "quiz"); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancelled subscriber notified, calls = %d", calls)
	}
}
