package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/job"
)

func TestSimulatorDrivesFullLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	j, err := svc.AddJob(ctx, "summarize")
	require.NoError(t, err)

	var states []job.Job
	cancel, err := svc.Subscribe(ctx, func(s []job.Job) {
		for _, row := range s {
			if row.ID == j.ID {
				states = append(states, row)
			}
		}
	})
	require.NoError(t, err)
	defer cancel()

	sim := NewSimulator(svc, 50*time.Millisecond, nil)
	require.NoError(t, sim.Run(ctx, j.ID))

	require.NotEmpty(t, states)

	// queued (replay), processing@10, then 20/40/60/80/90, then done@100.
	assert.Equal(t, job.StatusQueued, states[0].Status)
	var progression []int
	for _, st := range states[1:] {
		progression = append(progression, st.Progress)
		assert.NotEqual(t, job.StatusFailed, st.Status)
	}
	assert.Equal(t, []int{10, 20, 40, 60, 80, 90, 100}, progression)

	final := states[len(states)-1]
	assert.Equal(t, job.StatusDone, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, DefaultResultURL, final.ResultURL)
}

func TestSimulatorProgressNeverExceedsCapBeforeDone(t *testing.T) {
	ctx := context.Background()
	svc, ident := newTestService(t)
	signedIn(t, ident)

	j, err := svc.AddJob(ctx, "quiz")
	require.NoError(t, err)

	var beforeDone []int
	cancel, err := svc.Subscribe(ctx, func(s []job.Job) {
		for _, row := range s {
			if row.ID == j.ID && row.Status != job.StatusDone {
				beforeDone = append(beforeDone, row.Progress)
			}
		}
	})
	require.NoError(t, err)
	defer cancel()

	sim := NewSimulator(svc, 25*time.Millisecond, nil)
	require.NoError(t, sim.Run(ctx, j.ID))

	for _, p := range beforeDone {
		assert.LessOrEqual(t, p, 90)
	}
}

func TestSimulatorStopsOnCancel(t *testing.T) {
	svc, ident := newTestService(t)
	signedIn(t, ident)

	j, err := svc.AddJob(context.Background(), "explain")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(svc, time.Minute, nil)
	err = sim.Run(ctx, j.ID)
	require.ErrorIs(t, err, context.Canceled)

	jobs, err := svc.Jobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.NotEqual(t, job.StatusDone, jobs[0].Status)
}

func TestSimulatorDefaultDuration(t *testing.T) {
	svc, _ := newTestService(t)
	sim := NewSimulator(svc, 0, nil)
	assert.Equal(t, DefaultSimulationDuration, sim.duration)
}
