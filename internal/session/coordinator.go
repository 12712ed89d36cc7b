package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"feedpilot/internal/api"
)

// Coordinator drives the session lifecycle around the model: start,
// status polling, the two-phase submit flow, task tracking and reset.
type Coordinator struct {
	Client  Client
	Model   *Model
	Journal Journal
}

// Start validates the configuration, begins a fresh session and applies
// the backend's first snapshot. Credentials are checked client-side so
// an incomplete form causes no network traffic.
func (c *Coordinator) Start(ctx context.Context, cfg api.SessionConfig) (api.StatusSnapshot, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return api.StatusSnapshot{}, fmt.Errorf("%w: client id is required", ErrValidation)
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return api.StatusSnapshot{}, fmt.Errorf("%w: client secret is required", ErrValidation)
	}
	if cfg.MaxItems <= 0 {
		return api.StatusSnapshot{}, fmt.Errorf("%w: max items must be positive", ErrValidation)
	}
	if cfg.FeedOffset < 0 {
		return api.StatusSnapshot{}, fmt.Errorf("%w: feed offset must not be negative", ErrValidation)
	}
	if !c.Model.Begin(ActionStart) {
		return api.StatusSnapshot{}, ErrActionInFlight
	}
	defer c.Model.End(ActionStart)

	c.Model.beginSession(cfg)
	snap, err := c.Client.StartProcessing(ctx, cfg)
	if err != nil {
		return api.StatusSnapshot{}, err
	}
	c.Model.Apply(snap)
	c.record(func(j Journal) error {
		return j.RecordStart(ctx, c.Model.SessionID(), cfg)
	})
	return snap, nil
}

// Poll fetches the current status snapshot and folds it into the model.
// It takes no in-flight slot and touches no controls; background
// refreshes must never disable operator actions.
func (c *Coordinator) Poll(ctx context.Context) (api.StatusSnapshot, error) {
	snap, err := c.Client.Status(ctx)
	if err != nil {
		return api.StatusSnapshot{}, err
	}
	c.Model.Apply(snap)
	return snap, nil
}

// Submit sends the prepared items to the marketplace, then
// unconditionally re-fetches the status snapshot: the submit response is
// a minimal ack and not trusted as the sole source of the task id. The
// direct response wins when both carry one; either way the id is sticky
// until reset.
func (c *Coordinator) Submit(ctx context.Context) (string, error) {
	if !c.Model.SubmitEnabled() {
		if c.Model.InFlight(ActionSubmit) {
			return "", ErrActionInFlight
		}
		return "", ErrNotReady
	}
	if !c.Model.Begin(ActionSubmit) {
		return "", ErrActionInFlight
	}
	defer c.Model.End(ActionSubmit)

	res, submitErr := c.Client.SubmitToOzon(ctx)

	// Even a failed submit may have changed backend state; refresh
	// regardless and let the model settle on whatever is reported.
	if snap, err := c.Client.Status(ctx); err == nil {
		c.Model.Apply(snap)
	}
	if submitErr != nil {
		return "", submitErr
	}

	if id := res.ResolvedTaskID(); id != "" {
		c.Model.setTaskID(id)
	}
	taskID := c.Model.CurrentTaskID()
	c.record(func(j Journal) error {
		return j.RecordSubmit(ctx, c.Model.SessionID(), taskID)
	})
	return taskID, nil
}

// RefreshTaskInfo re-fetches marketplace task detail. It resolves
// immediately when no task id is known and never blocks other actions.
func (c *Coordinator) RefreshTaskInfo(ctx context.Context) (json.RawMessage, error) {
	taskID := c.Model.CurrentTaskID()
	if taskID == "" {
		return nil, nil
	}
	if !c.Model.Begin(ActionTaskInfo) {
		return nil, ErrActionInFlight
	}
	defer c.Model.End(ActionTaskInfo)

	info, err := c.Client.TaskInfo(ctx, taskID)
	if err != nil {
		return nil, err
	}
	c.Model.setTaskInfo(info)
	return info, nil
}

// Reset clears the backend session and the local model. Local state is
// cleared even when the backend call fails, so stale decision and task
// data from the previous session cannot leak into the next one.
func (c *Coordinator) Reset(ctx context.Context) (api.StatusSnapshot, error) {
	if !c.Model.Begin(ActionReset) {
		return api.StatusSnapshot{}, ErrActionInFlight
	}
	defer c.Model.End(ActionReset)

	sessionID := c.Model.SessionID()
	snap, err := c.Client.ResetSession(ctx)
	c.Model.Reset()
	c.record(func(j Journal) error {
		return j.RecordReset(ctx, sessionID)
	})
	if err != nil {
		return api.StatusSnapshot{}, err
	}
	c.Model.Apply(snap)
	return snap, nil
}

func (c *Coordinator) record(fn func(Journal) error) {
	if c.Journal == nil {
		return
	}
	_ = fn(c.Journal)
}
