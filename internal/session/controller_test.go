package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"wellnav/internal/coach"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeBackend struct {
	mu         sync.Mutex
	coachResp  coach.CoachResponse
	coachErr   error
	syncErr    error
	healthErr  error
	coachCalls []coach.CoachRequest
	syncCalls  []coach.SyncRequest

	block   chan struct{}
	entered chan struct{}
}

func (f *fakeBackend) Coach(ctx context.Context, req coach.CoachRequest) (coach.CoachResponse, error) {
	f.mu.Lock()
	f.coachCalls = append(f.coachCalls, req)
	block, entered := f.block, f.entered
	resp, err := f.coachResp, f.coachErr
	f.mu.Unlock()
	if block != nil {
		entered <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
			return coach.CoachResponse{}, ctx.Err()
		}
	}
	return resp, err
}

func (f *fakeBackend) Sync(_ context.Context, req coach.SyncRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls = append(f.syncCalls, req)
	return f.syncErr
}

func (f *fakeBackend) Health(context.Context) error {
	return f.healthErr
}

func (f *fakeBackend) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.coachCalls), len(f.syncCalls)
}

func newTestController(t *testing.T, backend *fakeBackend) *Controller {
	t.Helper()
	c := NewController(backend, zaptest.NewLogger(t))
	c.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC) }
	return c
}

var alex = Profile{Name: "Alex", Goal: "sleep better", ActivityLevel: "light", PrimaryMetric: "sleep hours"}

func TestSubmitRejectsMissingNameOrMessage(t *testing.T) {
	cases := []struct {
		name    string
		profile Profile
		message string
		status  string
	}{
		{"empty name", Profile{}, "feeling tired", StatusNeedName},
		{"blank name", Profile{Name: "   "}, "feeling tired", StatusNeedName},
		{"empty message", Profile{Name: "Alex"}, "", StatusNeedMessage},
		{"blank message", Profile{Name: "Alex"}, " \t ", StatusNeedMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{}
			c := newTestController(t, backend)

			_, err := c.SubmitCoachMessage(context.Background(), tc.profile, tc.message)
			require.ErrorIs(t, err, ErrValidation)

			coachCalls, _ := backend.calls()
			assert.Zero(t, coachCalls)
			state := c.Snapshot()
			assert.Equal(t, tc.status, state.Status)
			assert.Empty(t, state.Transcript)
			assert.False(t, state.Loading)
		})
	}
}

func TestSubmitAppliesNextQuestionAndKeepsActions(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "fitness", RecommendedActions: []string{"Log steps daily."}}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), Profile{Name: "Alex"}, "walked today")
	require.NoError(t, err)

	backend.coachResp = coach.CoachResponse{
		FocusArea:    "sleep",
		NextQuestion: "How many hours did you sleep?",
	}
	c.SetStatus("stale")
	resp, err := c.SubmitCoachMessage(context.Background(), Profile{Name: "Alex"}, "feeling tired")
	require.NoError(t, err)
	assert.Equal(t, "sleep", resp.FocusArea)

	state := c.Snapshot()
	require.Len(t, state.Transcript, 4)
	assert.Equal(t, ChatEntry{Role: RoleUser, Text: "feeling tired", At: c.now()}, state.Transcript[2])
	assert.Equal(t, RoleCoach, state.Transcript[3].Role)
	assert.Equal(t, "Focus area identified: sleep. How many hours did you sleep?", state.Transcript[3].Text)
	assert.Equal(t, []string{"Log steps daily."}, state.RecommendedActions)
	assert.Equal(t, "sleep", state.FocusArea)
	assert.Equal(t, "How many hours did you sleep?", state.PendingQuestion)
	assert.Empty(t, state.Status)
	assert.False(t, state.Loading)
}

func TestSubmitReplacesActionsWhenPresent(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "fitness", RecommendedActions: []string{"a", "b"}}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), Profile{Name: "Alex"}, "run")
	require.NoError(t, err)

	backend.coachResp = coach.CoachResponse{FocusArea: "fitness", RecommendedActions: []string{}}
	_, err = c.SubmitCoachMessage(context.Background(), Profile{Name: "Alex"}, "run again")
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().RecommendedActions)
}

func TestSubmitSendsProfileAndCurrentFocus(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "resilience"}}
	c := newTestController(t, backend)

	_, err := c.SubmitCoachMessage(context.Background(), Profile{Name: " Alex ", Goal: "calm"}, "stress")
	require.NoError(t, err)
	_, err = c.SubmitCoachMessage(context.Background(), Profile{Name: "Alex", Goal: "calm"}, "still stressed")
	require.NoError(t, err)

	require.Len(t, backend.coachCalls, 2)
	first, second := backend.coachCalls[0], backend.coachCalls[1]
	assert.Equal(t, "Alex", first.UserName)
	require.NotNil(t, first.Goal)
	assert.Equal(t, "calm", *first.Goal)
	assert.Nil(t, first.ActivityLevel)
	assert.Nil(t, first.PrimaryMetric)
	assert.Nil(t, first.FocusArea)
	require.NotNil(t, second.FocusArea)
	assert.Equal(t, "resilience", *second.FocusArea)
}

func TestSubmitFailurePreservesState(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{
		FocusArea:          "fitness",
		ReadyToSync:        true,
		RecommendedActions: []string{"Plan 3-4 sessions this week."},
	}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), alex, "workout")
	require.NoError(t, err)

	backend.coachErr = &coach.StatusError{Endpoint: "/coach", Code: 500}
	_, err = c.SubmitCoachMessage(context.Background(), alex, "another workout")
	var statusErr *coach.StatusError
	require.ErrorAs(t, err, &statusErr)

	state := c.Snapshot()
	assert.Equal(t, StatusCoachFailed, state.Status)
	assert.True(t, state.StatusIsError)
	assert.Equal(t, "fitness", state.FocusArea)
	assert.True(t, state.ReadyToSync)
	assert.Equal(t, []string{"Plan 3-4 sessions this week."}, state.RecommendedActions)
	require.Len(t, state.Transcript, 3)
	assert.Equal(t, RoleUser, state.Transcript[2].Role)
	assert.False(t, state.Loading)

	backend.coachErr = nil
	_, err = c.SubmitCoachMessage(context.Background(), alex, "retry")
	require.NoError(t, err, "slot must be released after a failure")
	assert.False(t, c.Snapshot().StatusIsError)
}

func TestSubmitMalformedResponseDoesNotMutateGuidance(t *testing.T) {
	backend := &fakeBackend{coachErr: errors.Join(coach.ErrMalformedResponse, errors.New("focus_area missing"))}
	c := newTestController(t, backend)

	_, err := c.SubmitCoachMessage(context.Background(), alex, "hello")
	require.ErrorIs(t, err, coach.ErrMalformedResponse)

	state := c.Snapshot()
	assert.Empty(t, state.FocusArea)
	assert.False(t, state.ReadyToSync)
	assert.Nil(t, state.RecommendedActions)
	assert.Equal(t, StatusCoachFailed, state.Status)
}

func TestOverlappingCallsAreRejected(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "sleep", ReadyToSync: true}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), alex, "first")
	require.NoError(t, err)

	block := make(chan struct{})
	var unblock sync.Once
	release := func() { unblock.Do(func() { close(block) }) }
	t.Cleanup(release)
	backend.mu.Lock()
	backend.block = block
	backend.entered = make(chan struct{}, 1)
	entered := backend.entered
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitCoachMessage(context.Background(), alex, "second")
		done <- err
	}()
	<-entered
	assert.True(t, c.Snapshot().Loading)

	_, err = c.BeginCoach(alex, "third")
	require.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StatusBusy, c.Snapshot().Status)
	assert.True(t, c.Snapshot().StatusIsError)

	_, err = c.BeginSync(alex)
	require.ErrorIs(t, err, ErrBusy)

	release()
	require.NoError(t, <-done)

	state := c.Snapshot()
	assert.False(t, state.Loading)
	assert.False(t, state.StatusIsError)
	require.Len(t, state.Transcript, 4)
	assert.Equal(t, "second", state.Transcript[2].Text)
	coachCalls, syncCalls := backend.calls()
	assert.Equal(t, 2, coachCalls)
	assert.Zero(t, syncCalls)

	require.NoError(t, c.SyncMilestone(context.Background(), alex), "slot must be free again")
}

func TestCoachCallRunsOnce(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "sleep"}}
	c := newTestController(t, backend)

	call, err := c.BeginCoach(alex, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", call.Request().Message)
	_, err = call.Run(context.Background())
	require.NoError(t, err)
	_, err = call.Run(context.Background())
	require.Error(t, err)

	coachCalls, _ := backend.calls()
	assert.Equal(t, 1, coachCalls)
}

func TestSyncForcesReadyFalse(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "sleep", ReadyToSync: true}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), alex, "slept badly")
	require.NoError(t, err)
	require.True(t, c.Snapshot().ReadyToSync)

	require.NoError(t, c.SyncMilestone(context.Background(), alex))

	state := c.Snapshot()
	assert.False(t, state.ReadyToSync)
	assert.Equal(t, "Milestone synced for Alex (sleep).", state.Status)
	assert.False(t, state.StatusIsError)
	assert.Equal(t, c.now(), state.LastSyncedAt)

	require.Len(t, backend.syncCalls, 1)
	want := coach.SyncRequest{
		UserName:     "Alex",
		FocusArea:    "sleep",
		HealthMetric: "sleep hours",
		PrimaryGoal:  "sleep better",
		Timestamp:    "2026-10-17T09:30:00Z",
	}
	if diff := cmp.Diff(want, backend.syncCalls[0]); diff != "" {
		t.Errorf("sync payload mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncWhenNotReadyStillSendsAndStaysFalse(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "sleep"}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), alex, "slept badly")
	require.NoError(t, err)

	require.NoError(t, c.SyncMilestone(context.Background(), alex))
	assert.False(t, c.Snapshot().ReadyToSync)
}

func TestSyncRequiresFields(t *testing.T) {
	cases := map[string]Profile{
		"name":           {Goal: "g", PrimaryMetric: "m"},
		"goal":           {Name: "Alex", PrimaryMetric: "m"},
		"primary metric": {Name: "Alex", Goal: "g"},
	}
	for field, profile := range cases {
		t.Run(field, func(t *testing.T) {
			backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "sleep", ReadyToSync: true}}
			c := newTestController(t, backend)
			_, err := c.SubmitCoachMessage(context.Background(), Profile{Name: "Alex"}, "tired")
			require.NoError(t, err)

			err = c.SyncMilestone(context.Background(), profile)
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), field)

			state := c.Snapshot()
			assert.True(t, state.ReadyToSync)
			assert.Equal(t, StatusSyncMissing, state.Status)
			_, syncCalls := backend.calls()
			assert.Zero(t, syncCalls)
		})
	}

	t.Run("focus area", func(t *testing.T) {
		backend := &fakeBackend{}
		c := newTestController(t, backend)
		err := c.SyncMilestone(context.Background(), alex)
		require.ErrorIs(t, err, ErrValidation)
		_, syncCalls := backend.calls()
		assert.Zero(t, syncCalls)
	})
}

func TestSyncFailureLeavesReadyUnchanged(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "sleep", ReadyToSync: true}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), alex, "tired")
	require.NoError(t, err)

	backend.syncErr = errors.New("connection refused")
	require.Error(t, c.SyncMilestone(context.Background(), alex))

	state := c.Snapshot()
	assert.True(t, state.ReadyToSync)
	assert.Equal(t, StatusSyncFailed, state.Status)
	assert.True(t, state.StatusIsError)
	assert.False(t, state.Loading)
	assert.True(t, state.LastSyncedAt.IsZero())
}

func TestCheckHealthTracksReachability(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)
	assert.Equal(t, ReachUnknown, c.Snapshot().Reachability)

	require.NoError(t, c.CheckHealth(context.Background()))
	assert.Equal(t, ReachOnline, c.Snapshot().Reachability)

	backend.healthErr = errors.New("down")
	require.Error(t, c.CheckHealth(context.Background()))
	assert.Equal(t, ReachOffline, c.Snapshot().Reachability)
	assert.Equal(t, "offline", c.Snapshot().Reachability.String())
}

func TestSnapshotIsACopy(t *testing.T) {
	backend := &fakeBackend{coachResp: coach.CoachResponse{FocusArea: "sleep", RecommendedActions: []string{"a"}}}
	c := newTestController(t, backend)
	_, err := c.SubmitCoachMessage(context.Background(), alex, "tired")
	require.NoError(t, err)

	snap := c.Snapshot()
	snap.Transcript[0].Text = "mutated"
	snap.RecommendedActions[0] = "mutated"

	fresh := c.Snapshot()
	assert.Equal(t, "tired", fresh.Transcript[0].Text)
	assert.Equal(t, "a", fresh.RecommendedActions[0])
}
