// Package session owns the state of one coaching session and the two round
// trips that change it: sending a chat message to the coach and syncing a
// completed milestone.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"wellnav/internal/coach"
)

var (
	// ErrValidation marks a call rejected before any network traffic.
	ErrValidation = errors.New("validation failed")
	// ErrBusy is returned while another coach or sync request is outstanding.
	ErrBusy = errors.New("request already in flight")
)

// Status lines shown to the user.
const (
	StatusNeedName    = "Please enter your name before chatting with the coach."
	StatusNeedMessage = "Type a message for the coach first."
	StatusBusy        = "Still waiting on the previous request."
	StatusCoachFailed = "Something went wrong reaching the coach. Please try again."
	StatusSyncMissing = "Name, goal, primary metric, and a focus area are required to sync."
	StatusSyncFailed  = "Sync failed. Please try again."
)

// Backend is the remote coach service.
type Backend interface {
	Coach(ctx context.Context, req coach.CoachRequest) (coach.CoachResponse, error)
	Sync(ctx context.Context, req coach.SyncRequest) error
	Health(ctx context.Context) error
}

// Controller serializes every mutation of a session's State. At most one
// coach or sync request runs at a time; overlapping calls get ErrBusy.
type Controller struct {
	backend  Backend
	logger   *zap.Logger
	now      func() time.Time
	inflight *semaphore.Weighted

	mu    sync.Mutex
	state State
}

// NewController returns a controller with an empty session.
func NewController(backend Backend, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		backend:  backend,
		logger:   logger,
		now:      time.Now,
		inflight: semaphore.NewWeighted(1),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetProfile records direct form edits.
func (c *Controller) SetProfile(p Profile) {
	c.mu.Lock()
	c.state.Profile = p
	c.mu.Unlock()
}

// SetStatus replaces the status line with an informational message.
func (c *Controller) SetStatus(status string) {
	c.mu.Lock()
	c.setStatusLocked(status)
	c.mu.Unlock()
}

func (c *Controller) setStatusLocked(status string) {
	c.state.Status = status
	c.state.StatusIsError = false
}

func (c *Controller) setErrorLocked(status string) {
	c.state.Status = status
	c.state.StatusIsError = true
}

// CoachCall is an accepted coach request waiting to be sent. Run must be
// called exactly once to release the in-flight slot.
type CoachCall struct {
	c    *Controller
	req  coach.CoachRequest
	once sync.Once
}

// SyncCall is an accepted sync request waiting to be sent. Run must be
// called exactly once to release the in-flight slot.
type SyncCall struct {
	c    *Controller
	req  coach.SyncRequest
	once sync.Once
}

// BeginCoach validates the input, claims the in-flight slot, and appends the
// user's message to the transcript. It never touches the network.
func (c *Controller) BeginCoach(p Profile, message string) (*CoachCall, error) {
	p = p.trimmed()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Profile = p
	if p.Name == "" {
		c.setErrorLocked(StatusNeedName)
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(message) == "" {
		c.setErrorLocked(StatusNeedMessage)
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !c.inflight.TryAcquire(1) {
		c.setErrorLocked(StatusBusy)
		return nil, ErrBusy
	}

	c.state.Transcript = append(c.state.Transcript, ChatEntry{Role: RoleUser, Text: message, At: c.now()})
	c.state.Loading = true
	req := coach.CoachRequest{
		UserName:      p.Name,
		Message:       message,
		Goal:          coach.Optional(p.Goal),
		ActivityLevel: coach.Optional(p.ActivityLevel),
		PrimaryMetric: coach.Optional(p.PrimaryMetric),
		FocusArea:     coach.Optional(c.state.FocusArea),
	}
	return &CoachCall{c: c, req: req}, nil
}

// Request exposes the body that Run will send.
func (call *CoachCall) Request() coach.CoachRequest {
	return call.req
}

// Run sends the request and applies the response. On failure the previous
// guidance is left untouched.
func (call *CoachCall) Run(ctx context.Context) (coach.CoachResponse, error) {
	var (
		resp coach.CoachResponse
		err  error
		ran  bool
	)
	call.once.Do(func() {
		ran = true
		resp, err = call.c.runCoach(ctx, call.req)
	})
	if !ran {
		return coach.CoachResponse{}, errors.New("coach call already ran")
	}
	return resp, err
}

func (c *Controller) runCoach(ctx context.Context, req coach.CoachRequest) (coach.CoachResponse, error) {
	defer c.release()

	resp, err := c.backend.Coach(ctx, req)
	if err != nil {
		c.logger.Warn("coach call failed", zap.String("user", req.UserName), zap.Error(err))
		c.mu.Lock()
		c.setErrorLocked(StatusCoachFailed)
		c.mu.Unlock()
		return coach.CoachResponse{}, err
	}

	utterance := Utterance(resp)
	c.mu.Lock()
	c.state.FocusArea = resp.FocusArea
	c.state.ReadyToSync = resp.ReadyToSync
	c.state.PendingQuestion = resp.NextQuestion
	c.state.MissingField = resp.MissingField
	c.state.SafetyFlag = resp.SafetyFlag
	if resp.RecommendedActions != nil {
		c.state.RecommendedActions = append([]string{}, resp.RecommendedActions...)
	}
	c.state.Transcript = append(c.state.Transcript, ChatEntry{Role: RoleCoach, Text: utterance, At: c.now()})
	c.setStatusLocked("")
	c.state.Reachability = ReachOnline
	c.mu.Unlock()

	c.logger.Info("coach replied",
		zap.String("focus_area", resp.FocusArea),
		zap.Bool("ready_to_sync", resp.ReadyToSync),
		zap.Bool("safety_flag", resp.SafetyFlag != ""),
		zap.Int("actions", len(resp.RecommendedActions)),
	)
	return resp, nil
}

// SubmitCoachMessage is BeginCoach followed by Run.
func (c *Controller) SubmitCoachMessage(ctx context.Context, p Profile, message string) (coach.CoachResponse, error) {
	call, err := c.BeginCoach(p, message)
	if err != nil {
		return coach.CoachResponse{}, err
	}
	return call.Run(ctx)
}

// BeginSync validates that the milestone is complete and claims the
// in-flight slot. readyToSync is not consulted; only field presence is.
func (c *Controller) BeginSync(p Profile) (*SyncCall, error) {
	p = p.trimmed()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Profile = p
	focus := strings.TrimSpace(c.state.FocusArea)
	if missing := missingSyncFields(p, focus); len(missing) > 0 {
		c.setErrorLocked(StatusSyncMissing)
		return nil, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if !c.inflight.TryAcquire(1) {
		c.setErrorLocked(StatusBusy)
		return nil, ErrBusy
	}

	c.state.Loading = true
	req := coach.SyncRequest{
		UserName:     p.Name,
		FocusArea:    focus,
		HealthMetric: p.PrimaryMetric,
		PrimaryGoal:  p.Goal,
		Timestamp:    c.now().UTC().Format(time.RFC3339),
	}
	return &SyncCall{c: c, req: req}, nil
}

// Request exposes the body that Run will send.
func (call *SyncCall) Request() coach.SyncRequest {
	return call.req
}

// Run posts the milestone. Success forces readyToSync to false.
func (call *SyncCall) Run(ctx context.Context) error {
	err := errors.New("sync call already ran")
	call.once.Do(func() {
		err = call.c.runSync(ctx, call.req)
	})
	return err
}

func (c *Controller) runSync(ctx context.Context, req coach.SyncRequest) error {
	defer c.release()

	if err := c.backend.Sync(ctx, req); err != nil {
		c.logger.Warn("sync failed", zap.String("user", req.UserName), zap.Error(err))
		c.mu.Lock()
		c.setErrorLocked(StatusSyncFailed)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.state.ReadyToSync = false
	c.setStatusLocked(fmt.Sprintf("Milestone synced for %s (%s).", req.UserName, req.FocusArea))
	c.state.LastSyncedAt = c.now()
	c.mu.Unlock()

	c.logger.Info("milestone synced", zap.String("user", req.UserName), zap.String("focus_area", req.FocusArea))
	return nil
}

// SyncMilestone is BeginSync followed by Run.
func (c *Controller) SyncMilestone(ctx context.Context, p Profile) error {
	call, err := c.BeginSync(p)
	if err != nil {
		return err
	}
	return call.Run(ctx)
}

// CheckHealth pings the coach service and records whether it answered. It
// does not take the in-flight slot.
func (c *Controller) CheckHealth(ctx context.Context) error {
	err := c.backend.Health(ctx)
	c.mu.Lock()
	if err != nil {
		c.state.Reachability = ReachOffline
	} else {
		c.state.Reachability = ReachOnline
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Debug("coach health check failed", zap.Error(err))
	}
	return err
}

func (c *Controller) release() {
	c.mu.Lock()
	c.state.Loading = false
	c.mu.Unlock()
	c.inflight.Release(1)
}

func missingSyncFields(p Profile, focus string) []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.Goal == "" {
		missing = append(missing, "goal")
	}
	if p.PrimaryMetric == "" {
		missing = append(missing, "primary metric")
	}
	if focus == "" {
		missing = append(missing, "focus area")
	}
	return missing
}
