package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0xPuncker/andon-notifier/internal/store"
	"github.com/0xPuncker/andon-notifier/internal/testutil"
	"github.com/0xPuncker/andon-notifier/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJob = "andon_notifications"

var testNow = time.Date(2024, time.March, 12, 10, 30, 0, 0, time.UTC)

type countingSender struct {
	calls atomic.Int32
	err   error
	hook  func(ctx context.Context) error
}

func (s *countingSender) Send(ctx context.Context) error {
	s.calls.Add(1)
	if s.hook != nil {
		return s.hook(ctx)
	}
	return s.err
}

func newTestRunner(t *testing.T, sender Sender, configure ...func(*RunnerConfig)) (*Runner, *store.Store) {
	t.Helper()

	schedule, err := calendar.NewDailySchedule(8, time.UTC)
	require.NoError(t, err)

	cfg := RunnerConfig{
		JobName:  testJob,
		Interval: time.Hour,
		Schedule: schedule,
	}
	for _, c := range configure {
		c(&cfg)
	}

	jobStore := store.New(testutil.NewJobDB(t))
	r := NewRunner(cfg, jobStore, sender, testutil.NewLogger(t))
	r.now = func() time.Time { return testNow }
	return r, jobStore
}

func ensureJob(t *testing.T, s *store.Store, nextRun time.Time) {
	t.Helper()
	created, err := s.EnsureJobExists(context.Background(), testJob, nextRun)
	require.NoError(t, err)
	require.True(t, created)
}

func getJob(t *testing.T, s *store.Store) *store.JobRecord {
	t.Helper()
	rec, err := s.Get(context.Background(), testJob)
	require.NoError(t, err)
	return rec
}

func TestInitialRunIgnoresNextRun(t *testing.T) {
	sender := &countingSender{}
	r, s := newTestRunner(t, sender)
	ensureJob(t, s, testNow.Add(24*time.Hour))

	r.CheckAndExecuteJob(context.Background(), true)

	assert.Equal(t, int32(1), sender.calls.Load())

	rec := getJob(t, s)
	assert.Equal(t, store.StatusPending, rec.Status)
	require.NotNil(t, rec.LastRun)
	assert.True(t, rec.LastRun.Equal(testNow))
	assert.True(t, rec.NextRun.Equal(time.Date(2024, time.March, 13, 8, 0, 0, 0, time.UTC)))
	assert.Nil(t, rec.LockedBy)
	assert.Nil(t, rec.LastError)
}

func TestTickSkipsJobThatIsNotDue(t *testing.T) {
	sender := &countingSender{}
	r, s := newTestRunner(t, sender)
	nextRun := testNow.Add(time.Minute)
	ensureJob(t, s, nextRun)

	r.CheckAndExecuteJob(context.Background(), false)

	assert.Zero(t, sender.calls.Load())
	rec := getJob(t, s)
	assert.Equal(t, store.StatusPending, rec.Status)
	assert.True(t, rec.NextRun.Equal(nextRun))
}

func TestTickRunsDueJob(t *testing.T) {
	sender := &countingSender{}
	r, s := newTestRunner(t, sender)
	ensureJob(t, s, testNow)

	r.CheckAndExecuteJob(context.Background(), false)

	assert.Equal(t, int32(1), sender.calls.Load())
	rec := getJob(t, s)
	assert.Equal(t, store.StatusPending, rec.Status)
	assert.True(t, rec.NextRun.After(testNow))
}

func TestConcurrentTicksSendOnce(t *testing.T) {
	release := make(chan struct{})
	sender := &countingSender{hook: func(context.Context) error {
		<-release
		return nil
	}}
	r, s := newTestRunner(t, sender)
	ensureJob(t, s, testNow.Add(-time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAndExecuteJob(context.Background(), false)
		}()
	}

	require.Eventually(t, func() bool { return sender.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), sender.calls.Load())
	assert.Equal(t, store.StatusPending, getJob(t, s).Status)
}

func TestRunningJobIsNotClaimedAgain(t *testing.T) {
	var inner atomic.Int32
	var r *Runner
	sender := &countingSender{}
	sender.hook = func(ctx context.Context) error {
		r.CheckAndExecuteJob(ctx, true)
		inner.Add(1)
		return nil
	}
	r, s := newTestRunner(t, sender)
	ensureJob(t, s, testNow)

	r.CheckAndExecuteJob(context.Background(), true)

	assert.Equal(t, int32(1), sender.calls.Load())
	assert.Equal(t, int32(1), inner.Load())
	assert.Equal(t, store.StatusPending, getJob(t, s).Status)
}

func TestFailedJobStaysFailed(t *testing.T) {
	sender := &countingSender{err: errors.New("smtp unreachable")}
	r, s := newTestRunner(t, sender)
	ensureJob(t, s, testNow)

	r.CheckAndExecuteJob(context.Background(), false)

	rec := getJob(t, s)
	assert.Equal(t, store.StatusFailed, rec.Status)
	require.NotNil(t, rec.LastError)
	assert.Contains(t, *rec.LastError, "smtp unreachable")
	assert.True(t, rec.NextRun.Equal(testNow))

	r.CheckAndExecuteJob(context.Background(), false)
	r.CheckAndExecuteJob(context.Background(), true)
	assert.Equal(t, int32(1), sender.calls.Load())
}

func TestSenderPanicMarksJobFailed(t *testing.T) {
	sender := &countingSender{hook: func(context.Context) error {
		panic("template exploded")
	}}
	r, s := newTestRunner(t, sender)
	ensureJob(t, s, testNow)

	assert.NotPanics(t, func() {
		r.CheckAndExecuteJob(context.Background(), false)
	})

	rec := getJob(t, s)
	assert.Equal(t, store.StatusFailed, rec.Status)
	require.NotNil(t, rec.LastError)
	assert.Contains(t, *rec.LastError, "template exploded")
}

func TestSendTimeoutBoundsSender(t *testing.T) {
	sender := &countingSender{hook: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	r, s := newTestRunner(t, sender, func(c *RunnerConfig) {
		c.SendTimeout = 20 * time.Millisecond
	})
	ensureJob(t, s, testNow)

	r.CheckAndExecuteJob(context.Background(), false)

	rec := getJob(t, s)
	assert.Equal(t, store.StatusFailed, rec.Status)
	require.NotNil(t, rec.LastError)
	assert.Contains(t, *rec.LastError, context.DeadlineExceeded.Error())
}

func TestStartRunsInitialPassAndStop(t *testing.T) {
	sender := &countingSender{}
	r, s := newTestRunner(t, sender)
	ctx := context.Background()

	require.NoError(t, r.Start(ctx))
	assert.True(t, r.IsRunning())
	assert.Error(t, r.Start(ctx))

	require.Eventually(t, func() bool {
		rec, err := s.Get(ctx, testJob)
		return err == nil && rec.LastRun != nil && rec.Status == store.StatusPending
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), sender.calls.Load())

	r.Stop()
	assert.False(t, r.IsRunning())
	r.Stop()
}

// claimRecorder counts claim attempts so tests can tell a pass ran even when it
// claimed nothing.
type claimRecorder struct {
	JobStore
	claims  atomic.Int32
	claimed atomic.Int32
}

func (c *claimRecorder) ClaimIfDue(ctx context.Context, jobName string, now time.Time, initialRun bool) (*store.JobRecord, error) {
	rec, err := c.JobStore.ClaimIfDue(ctx, jobName, now, initialRun)
	if rec != nil {
		c.claimed.Add(1)
	}
	c.claims.Add(1)
	return rec, err
}

func TestStartKeepsExistingRecord(t *testing.T) {
	sender := &countingSender{}
	r, s := newTestRunner(t, sender)
	recorder := &claimRecorder{JobStore: s}
	r.store = recorder
	ctx := context.Background()

	ensureJob(t, s, testNow.Add(time.Hour))
	_, err := s.ClaimIfDue(ctx, testJob, testNow, true)
	require.NoError(t, err)

	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.Eventually(t, func() bool { return recorder.claims.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, recorder.claimed.Load())
	assert.Zero(t, sender.calls.Load())
	assert.Equal(t, store.StatusRunning, getJob(t, s).Status)
}
