// Package jobs owns the reactive job store. Every mutation goes through the
// persistent collection and ends with a full-snapshot push to subscribers.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/job"
	"github.com/studyflow-app/studyflow-core/internal/app/metrics"
	"github.com/studyflow-app/studyflow-core/internal/app/services/feed"
	"github.com/studyflow-app/studyflow-core/internal/app/services/identity"
	"github.com/studyflow-app/studyflow-core/internal/app/storage"
	"github.com/studyflow-app/studyflow-core/internal/config"
	"github.com/studyflow-app/studyflow-core/internal/errors"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
	"github.com/studyflow-app/studyflow-core/supabase/client"
)

// Service is the reactive job store.
type Service struct {
	// mu serializes mutations so two writers cannot interleave their
	// read-modify-notify cycles.
	mu sync.Mutex

	col      storage.Collection[job.Job]
	identity *identity.Service
	costs    *config.CostTable
	feed     *feed.Feed[job.Job]
	log      *logger.Logger
}

// New creates the job store on top of a persistent collection.
func New(col storage.Collection[job.Job], ident *identity.Service, costs *config.CostTable, log *logger.Logger) *Service {
	if costs == nil {
		costs = config.DefaultCostTable()
	}
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	return &Service{
		col:      col,
		identity: ident,
		costs:    costs,
		feed:     feed.New[job.Job](),
		log:      log,
	}
}

// Subscribe registers fn and immediately delivers the current snapshot for
// the active user. Existing subscribers are refreshed from storage at the
// same time. The returned function cancels the subscription.
func (s *Service) Subscribe(ctx context.Context, fn func([]job.Job)) (func(), error) {
	snapshot, err := s.Jobs(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed.Publish(snapshot)
	metrics.StoreNotification(storage.DomainJobs)
	return s.feed.Subscribe(fn), nil
}

// Jobs lists the active user's jobs, newest first. An anonymous session
// sees an empty list.
func (s *Service) Jobs(ctx context.Context) ([]job.Job, error) {
	current := s.identity.ResolveSync()
	if current == nil {
		return []job.Job{}, nil
	}
	return s.col.List(ctx, current.ID)
}

// AddJob charges the tool's credit cost and appends a queued job. When the
// charge is rejected no job record is created.
func (s *Service) AddJob(ctx context.Context, toolName string) (*job.Job, error) {
	current := s.identity.ResolveSync()
	if current == nil {
		return nil, errors.Unauthenticated("")
	}

	cost := s.costs.Cost(toolName)
	if _, err := s.identity.Deduct(ctx, cost, "job:"+toolName); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j := job.Job{
		ID:        uuid.NewString(),
		UserID:    current.ID,
		ToolName:  toolName,
		Status:    job.StatusQueued,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.col.Append(ctx, j); err != nil {
		return nil, err
	}
	metrics.StoreWrite(storage.DomainJobs, "append")
	s.log.Info("job created", "job_id", j.ID, "tool", toolName, "cost", cost)

	s.notifyLocked(ctx, current.ID)
	return &j, nil
}

// UpdateJob applies a partial patch to one job and pushes the new snapshot.
func (s *Service) UpdateJob(ctx context.Context, id string, patch job.Patch) error {
	current := s.identity.ResolveSync()
	if current == nil {
		return errors.Unauthenticated("")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	existing, err := s.col.List(ctx, current.ID)
	if err != nil {
		return err
	}
	known := false
	for _, j := range existing {
		if j.ID == id {
			known = true
			break
		}
	}
	if !known {
		return errors.NotFound("job", id)
	}

	if err := s.col.Patch(ctx, id, fields); err != nil {
		return err
	}
	metrics.StoreWrite(storage.DomainJobs, "patch")

	s.notifyLocked(ctx, current.ID)
	return nil
}

// AttachRealtime re-lists and notifies whenever the backing table changes
// out from under us.
func (s *Service) AttachRealtime(ctx context.Context, rc *client.RealtimeClient, table string) error {
	return rc.SubscribeToTable(ctx, table, func(change client.TableChange) {
		current := s.identity.ResolveSync()
		if current == nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.log.Debug("realtime change", "table", change.Table, "event", change.Event)
		s.notifyLocked(ctx, current.ID)
	})
}

// ResetFeed forgets the replay snapshot. Called on sign-out so the next
// subscriber does not see the previous user's jobs.
func (s *Service) ResetFeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed.Reset()
}

func (s *Service) notifyLocked(ctx context.Context, userID string) {
	snapshot, err := s.col.List(ctx, userID)
	if err != nil {
		s.log.Error("refresh job snapshot", "error", err)
		return
	}
	s.feed.Publish(snapshot)
	metrics.StoreNotification(storage.DomainJobs)
}
