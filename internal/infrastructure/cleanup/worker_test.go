package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
)

type stubPurger struct {
	ids    []string
	err    error
	cutoff time.Time
}

func (s *stubPurger) PurgeEndedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.cutoff = cutoff
	return s.ids, s.err
}

type recordingClearer struct{ cleared []string }

func (r *recordingClearer) Clear(id string) { r.cleared = append(r.cleared, id) }

type recordingForgetter struct {
	forgotten []string
	err       error
}

func (r *recordingForgetter) Forget(_ context.Context, id string) error {
	r.forgotten = append(r.forgotten, id)
	return r.err
}

func TestSweepClearsPurgedSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purger := &stubPurger{ids: []string{"a", "b"}}
	memory := &recordingClearer{}
	features := &recordingForgetter{err: errors.New("disk full")}

	w := NewWorker(purger, memory, features, &Config{SweepInterval: time.Minute, Retention: time.Hour}, logging.NewNopLogger())
	w.now = func() time.Time { return now }

	assert.Equal(t, 2, w.Sweep(context.Background()))
	assert.Equal(t, now.Add(-time.Hour), purger.cutoff)
	assert.Equal(t, []string{"a", "b"}, memory.cleared)
	assert.Equal(t, []string{"a", "b"}, features.forgotten)
}

func TestSweepToleratesPurgeError(t *testing.T) {
	purger := &stubPurger{ids: []string{"a"}, err: errors.New("db locked")}
	memory := &recordingClearer{}

	w := NewWorker(purger, memory, nil, &Config{SweepInterval: time.Minute, Retention: time.Hour, VerboseReporting: true}, logging.NewNopLogger())
	assert.Equal(t, 1, w.Sweep(context.Background()))
	assert.Equal(t, []string{"a"}, memory.cleared)
}

func TestStartStopsOnCancel(t *testing.T) {
	w := NewWorker(&stubPurger{}, &recordingClearer{}, nil, &Config{SweepInterval: time.Millisecond, Retention: time.Hour}, logging.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
