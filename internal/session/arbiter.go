package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"feedpilot/internal/api"
)

var (
	// ErrValidation marks client-side input failures; no network call
	// is made for these.
	ErrValidation = errors.New("validation failed")

	// ErrStaleDecision marks a decide/skip whose decision id no longer
	// matches the model. It is logical, never shown as an error banner:
	// the action is silently discarded.
	ErrStaleDecision = errors.New("decision superseded")

	// ErrActionInFlight marks a second request of an action kind while
	// one is still outstanding.
	ErrActionInFlight = errors.New("request already in flight")

	// ErrNotReady marks a submit attempt outside ReadyForSubmission.
	ErrNotReady = errors.New("nothing ready for submission")
)

// Client is the transport surface the session controllers need. It is
// satisfied by *api.Client and by test fakes.
type Client interface {
	StartProcessing(ctx context.Context, cfg api.SessionConfig) (api.StatusSnapshot, error)
	Status(ctx context.Context) (api.StatusSnapshot, error)
	SubmitDecision(ctx context.Context, decisionID string, payload api.DecisionPayload) (api.StatusSnapshot, error)
	SkipOffer(ctx context.Context, decisionID string) (api.StatusSnapshot, error)
	SubmitToOzon(ctx context.Context) (api.SubmitResult, error)
	TaskInfo(ctx context.Context, taskID string) (json.RawMessage, error)
	ResetSession(ctx context.Context) (api.StatusSnapshot, error)
}

// Journal records operator actions for audit. Implementations must not
// feed anything back into session state. A nil Journal is valid.
type Journal interface {
	RecordStart(ctx context.Context, sessionID string, cfg api.SessionConfig) error
	RecordDecision(ctx context.Context, sessionID, decisionID, offerID string, typeID, descCatID int) error
	RecordSkip(ctx context.Context, sessionID, decisionID, offerID string) error
	RecordSubmit(ctx context.Context, sessionID, taskID string) error
	RecordReset(ctx context.Context, sessionID string) error
}

// Arbiter owns the lifecycle of at most one pending decision. It guards
// against stale and duplicate submissions; the model's current decision
// id is the single arbiter of which response still matters.
type Arbiter struct {
	Client  Client
	Model   *Model
	Journal Journal
}

// Decide resolves the pending decision with the chosen ids. Both ids
// must be positive integers (checked before any network traffic), and
// decisionID must still match the model's current decision.
func (a *Arbiter) Decide(ctx context.Context, decisionID string, typeID, descCatID int) (api.StatusSnapshot, error) {
	if typeID <= 0 {
		return api.StatusSnapshot{}, fmt.Errorf("%w: type id must be a positive integer", ErrValidation)
	}
	if descCatID <= 0 {
		return api.StatusSnapshot{}, fmt.Errorf("%w: description category id must be a positive integer", ErrValidation)
	}
	if err := a.Model.claimDecision(decisionID); err != nil {
		return api.StatusSnapshot{}, err
	}

	offerID := a.offerID()
	snap, err := a.Client.SubmitDecision(ctx, decisionID, api.DecisionPayload{
		ChosenTypeID:                typeID,
		ChosenDescriptionCategoryID: descCatID,
	})
	if err != nil {
		a.Model.completeDecision(decisionID, nil)
		return api.StatusSnapshot{}, err
	}
	if !a.Model.completeDecision(decisionID, &snap) {
		return api.StatusSnapshot{}, ErrStaleDecision
	}
	a.record(func(j Journal) error {
		return j.RecordDecision(ctx, a.Model.SessionID(), decisionID, offerID, typeID, descCatID)
	})
	return snap, nil
}

// Skip discards the offer behind the pending decision. Same staleness
// guard as Decide, no payload validation.
func (a *Arbiter) Skip(ctx context.Context, decisionID string) (api.StatusSnapshot, error) {
	if err := a.Model.claimDecision(decisionID); err != nil {
		return api.StatusSnapshot{}, err
	}

	offerID := a.offerID()
	snap, err := a.Client.SkipOffer(ctx, decisionID)
	if err != nil {
		a.Model.completeDecision(decisionID, nil)
		return api.StatusSnapshot{}, err
	}
	if !a.Model.completeDecision(decisionID, &snap) {
		return api.StatusSnapshot{}, ErrStaleDecision
	}
	a.record(func(j Journal) error {
		return j.RecordSkip(ctx, a.Model.SessionID(), decisionID, offerID)
	})
	return snap, nil
}

func (a *Arbiter) offerID() string {
	if d := a.Model.CurrentDecision(); d != nil {
		return d.OfferID
	}
	return ""
}

// record runs a journal write, swallowing failures: the audit trail is
// best effort and must never block the session flow.
func (a *Arbiter) record(fn func(Journal) error) {
	if a.Journal == nil {
		return
	}
	_ = fn(a.Journal)
}
