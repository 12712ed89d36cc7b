package session

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"

	"feedpilot/internal/api"
)

// Phase is the structured session state derived from the last snapshot.
// The human-readable status text is display data only; control flow
// never branches on it outside the classify helpers.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseProcessing
	PhaseAwaitingDecision
	PhaseReadyForSubmission
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseProcessing:
		return "processing"
	case PhaseAwaitingDecision:
		return "awaiting_decision"
	case PhaseReadyForSubmission:
		return "ready_for_submission"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Action is a logical request kind. At most one request per kind may be
// outstanding; the guard is an explicit field, not widget state.
type Action int

const (
	ActionStart Action = iota
	ActionDecision
	ActionSubmit
	ActionTaskInfo
	ActionReset
	actionCount
)

// Marker sets for the backend's status messages. Matching happens once,
// here; everywhere else phases are structured values and the text is
// display data only.
var (
	completionMarkers = []string{
		"Готово к отправке",
		"Все товары обработаны",
		"Все товары из фида рассмотрены",
		"Достигнуто максимальное количество",
	}
	idleMarkers = []string{
		"Ожидание",
		"Сессия сброшена",
		"Готово к новой конфигурации",
		"Система не инициализирована",
	}
)

func matchesAny(statusMessage string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(statusMessage, marker) {
			return true
		}
	}
	return false
}

func classifyComplete(statusMessage string) bool {
	return matchesAny(statusMessage, completionMarkers)
}

func classifyIdle(statusMessage string) bool {
	return matchesAny(statusMessage, idleMarkers)
}

// Model is the single source of truth for one operator session. It is
// owned by the client process, has no persistence, and is safe for use
// from the TUI event loop and tea.Cmd goroutines concurrently.
type Model struct {
	mu sync.RWMutex

	sessionID         string
	config            *api.SessionConfig
	lastSnapshot      api.StatusSnapshot
	haveSnapshot      bool
	derived           Phase
	currentDecisionID string
	currentTaskID     string
	taskInfo          json.RawMessage
	banner            string
	inFlight          [actionCount]bool
}

// NewModel returns an empty model in the idle phase.
func NewModel() *Model {
	return &Model{sessionID: uuid.NewString()}
}

// Apply folds a snapshot into the model and returns the derived phase.
// Priority: pending decision, then completion, then processing. A task
// id is sticky once seen; only Reset clears it.
func (m *Model) Apply(snap api.StatusSnapshot) Phase {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSnapshot = snap
	m.haveSnapshot = true

	if snap.ErrorMessage != nil && *snap.ErrorMessage != "" {
		m.banner = *snap.ErrorMessage
	} else {
		m.banner = ""
	}

	switch {
	case snap.HasPendingDecision():
		m.currentDecisionID = snap.DecisionID()
		m.derived = PhaseAwaitingDecision
	case classifyComplete(snap.StatusMessage):
		m.currentDecisionID = ""
		if snap.ItemsReadyForSubmission > 0 {
			m.derived = PhaseReadyForSubmission
		} else {
			m.derived = PhaseIdle
		}
	case classifyIdle(snap.StatusMessage) && snap.ItemsReadyForSubmission == 0:
		m.currentDecisionID = ""
		m.derived = PhaseIdle
	default:
		m.currentDecisionID = ""
		m.derived = PhaseProcessing
	}

	if id := snap.TaskID(); id != "" {
		m.currentTaskID = id
	}
	return m.phaseLocked()
}

func (m *Model) phaseLocked() Phase {
	switch {
	case m.inFlight[ActionStart]:
		return PhaseStarting
	case m.inFlight[ActionSubmit]:
		return PhaseSubmitting
	case !m.haveSnapshot:
		return PhaseIdle
	default:
		return m.derived
	}
}

// Phase returns the current phase, with in-flight start and submit
// requests overlaying the snapshot-derived phase.
func (m *Model) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phaseLocked()
}

// TrackingTask reports the task overlay condition. It can be true
// alongside any phase; the task panel is governed solely by this.
func (m *Model) TrackingTask() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTaskID != ""
}

// Snapshot returns the last applied snapshot and whether one exists.
func (m *Model) Snapshot() (api.StatusSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSnapshot, m.haveSnapshot
}

// CurrentDecision returns the details of the pending decision, or nil.
func (m *Model) CurrentDecision() *api.DecisionDetails {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentDecisionID == "" || m.lastSnapshot.DecisionDetails == nil {
		return nil
	}
	d := *m.lastSnapshot.DecisionDetails
	return &d
}

// CurrentDecisionID returns the id of the pending decision, or "".
func (m *Model) CurrentDecisionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentDecisionID
}

// CurrentTaskID returns the sticky submission task id, or "".
func (m *Model) CurrentTaskID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTaskID
}

// TaskInfo returns the last fetched task detail blob.
func (m *Model) TaskInfo() json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.taskInfo
}

func (m *Model) setTaskID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		m.currentTaskID = id
	}
}

func (m *Model) setTaskInfo(info json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskInfo = info
}

// SessionID identifies this model instance, e.g. for journal scoping.
// It changes on every start so journal entries group per session.
func (m *Model) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Config returns the session configuration set at start, or nil.
func (m *Model) Config() *api.SessionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return nil
	}
	c := *m.config
	return &c
}

func (m *Model) beginSession(cfg api.SessionConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = uuid.NewString()
	m.config = &cfg
}

// Banner returns the current error banner, or "". Errors are non-fatal
// and co-occur with any phase.
func (m *Model) Banner() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.banner
}

// SetBanner surfaces a client-side error to the operator. It replaces
// any previous message; errors are a single current message, not a log.
func (m *Model) SetBanner(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banner = msg
}

// StatusText returns the display status line. When processing completed
// with nothing to submit, a note is appended; that is a display nuance,
// not a distinct phase.
func (m *Model) StatusText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.haveSnapshot {
		return "Готово к запуску. Введите конфигурацию и начните обработку."
	}
	text := m.lastSnapshot.StatusMessage
	if m.derived == PhaseIdle && classifyComplete(text) && m.lastSnapshot.ItemsReadyForSubmission == 0 &&
		!strings.Contains(text, "Нет товаров для отправки") {
		text += " Нет товаров для отправки."
	}
	return text
}

// Reset clears all session-scoped state: decision id, task id and info,
// configuration, in-flight reset marker excluded. Stale task data from a
// previous session never survives into the next one.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentDecisionID = ""
	m.currentTaskID = ""
	m.taskInfo = nil
	m.config = nil
	m.haveSnapshot = false
	m.lastSnapshot = api.StatusSnapshot{}
	m.derived = PhaseIdle
	m.banner = ""
}

// Begin marks an action in flight. It reports false when a request of
// the same kind is already outstanding.
func (m *Model) Begin(a Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[a] {
		return false
	}
	m.inFlight[a] = true
	return true
}

// End clears the in-flight marker for an action.
func (m *Model) End(a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight[a] = false
}

// InFlight reports whether a request of the given kind is outstanding.
func (m *Model) InFlight(a Action) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inFlight[a]
}

// claimDecision atomically checks the staleness guard and acquires the
// decision in-flight slot. Both checks must happen under one lock, or
// two rapid intents for the same decision could both pass.
func (m *Model) claimDecision(decisionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentDecisionID == "" || m.currentDecisionID != decisionID {
		return ErrStaleDecision
	}
	if m.inFlight[ActionDecision] {
		return ErrActionInFlight
	}
	m.inFlight[ActionDecision] = true
	return nil
}

// completeDecision applies the result of a decide/skip round trip. The
// snapshot is discarded when the decision has been superseded in the
// meantime (e.g. by a reset); the world has moved on.
func (m *Model) completeDecision(decisionID string, snap *api.StatusSnapshot) bool {
	m.mu.Lock()
	stale := m.currentDecisionID != decisionID
	m.inFlight[ActionDecision] = false
	m.mu.Unlock()

	if stale {
		return false
	}
	if snap != nil {
		m.Apply(*snap)
	}
	return true
}

// --- derived affordances ---

// ShowDecisionPanel reports whether the decision panel is visible.
func (m *Model) ShowDecisionPanel() bool {
	return m.Phase() == PhaseAwaitingDecision
}

// DecisionControlsEnabled reports whether decide/skip may be issued.
// Controls stay disabled while a decide or skip is in flight.
func (m *Model) DecisionControlsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phaseLocked() == PhaseAwaitingDecision && !m.inFlight[ActionDecision]
}

// ShowSubmissionPanel reports whether the submit affordance is visible.
// A pending decision always hides it, regardless of items ready.
func (m *Model) ShowSubmissionPanel() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.derived == PhaseReadyForSubmission && m.haveSnapshot
}

// SubmitEnabled reports whether a submission may be issued now.
func (m *Model) SubmitEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.derived == PhaseReadyForSubmission && m.haveSnapshot &&
		!m.inFlight[ActionSubmit] && !m.inFlight[ActionReset]
}

// StartEnabled reports whether a new start intent may be issued.
func (m *Model) StartEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.inFlight[ActionStart] || m.inFlight[ActionSubmit] || m.inFlight[ActionReset] {
		return false
	}
	if !m.haveSnapshot {
		return true
	}
	return m.derived == PhaseIdle || m.derived == PhaseReadyForSubmission
}

// ShowTaskPanel reports whether the task panel is visible. Presence of
// a task id is the only input; phase is not consulted.
func (m *Model) ShowTaskPanel() bool {
	return m.TrackingTask()
}
