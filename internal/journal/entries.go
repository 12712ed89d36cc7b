package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"feedpilot/internal/api"
)

// Entry is one recorded operator action. The journal is an append-only
// audit trail: entries are written during a session and read back only
// for display, never for control flow.
type Entry struct {
	ID                    string
	SessionID             string
	At                    time.Time
	Action                string
	DecisionID            *string
	OfferID               *string
	TypeID                *int
	DescriptionCategoryID *int
	TaskID                *string
	Note                  *string
}

// Actions recorded in the journal.
const (
	ActionStart  = "start"
	ActionDecide = "decide"
	ActionSkip   = "skip"
	ActionSubmit = "submit"
	ActionReset  = "reset"
)

// EntryRepo persists journal entries.
type EntryRepo struct {
	db *sql.DB
}

func NewEntryRepo(db *sql.DB) *EntryRepo { return &EntryRepo{db: db} }

func (r *EntryRepo) insert(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO entries(
	 id, session_id, at, action, decision_id, offer_id, type_id,
	 description_category_id, task_id, note)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		e.ID, e.SessionID, e.At.UTC().Format(time.RFC3339Nano), e.Action, e.DecisionID,
		e.OfferID, e.TypeID, e.DescriptionCategoryID, e.TaskID, e.Note)
	return err
}

func newEntry(sessionID, action string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		At:        time.Now().UTC(),
		Action:    action,
	}
}

// RecordStart notes a new session with its configuration (credentials
// excluded).
func (r *EntryRepo) RecordStart(ctx context.Context, sessionID string, cfg api.SessionConfig) error {
	redacted := cfg
	redacted.ClientSecret = ""
	raw, err := json.Marshal(redacted)
	if err != nil {
		return err
	}
	e := newEntry(sessionID, ActionStart)
	note := string(raw)
	e.Note = &note
	return r.insert(ctx, e)
}

// RecordDecision notes an accepted operator decision.
func (r *EntryRepo) RecordDecision(ctx context.Context, sessionID, decisionID, offerID string, typeID, descCatID int) error {
	e := newEntry(sessionID, ActionDecide)
	e.DecisionID = &decisionID
	e.TypeID = &typeID
	e.DescriptionCategoryID = &descCatID
	if offerID != "" {
		e.OfferID = &offerID
	}
	return r.insert(ctx, e)
}

// RecordSkip notes a skipped offer.
func (r *EntryRepo) RecordSkip(ctx context.Context, sessionID, decisionID, offerID string) error {
	e := newEntry(sessionID, ActionSkip)
	e.DecisionID = &decisionID
	if offerID != "" {
		e.OfferID = &offerID
	}
	return r.insert(ctx, e)
}

// RecordSubmit notes a marketplace submission and its task id when one
// was acknowledged.
func (r *EntryRepo) RecordSubmit(ctx context.Context, sessionID, taskID string) error {
	e := newEntry(sessionID, ActionSubmit)
	if taskID != "" {
		e.TaskID = &taskID
	}
	return r.insert(ctx, e)
}

// RecordReset notes the end of a session.
func (r *EntryRepo) RecordReset(ctx context.Context, sessionID string) error {
	return r.insert(ctx, newEntry(sessionID, ActionReset))
}

// List returns entries for one session, oldest first.
func (r *EntryRepo) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, session_id, at, action, decision_id, offer_id, type_id,
	       description_category_id, task_id, note
	FROM entries
	WHERE session_id = ?
	ORDER BY at ASC, id ASC;
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &e.SessionID, &at, &e.Action, &e.DecisionID,
			&e.OfferID, &e.TypeID, &e.DescriptionCategoryID, &e.TaskID, &e.Note); err != nil {
			return nil, err
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = parsed
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
