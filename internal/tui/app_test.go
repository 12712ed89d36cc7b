package tui

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"feedpilot/internal/api"
	"feedpilot/internal/config"
	"feedpilot/internal/session"
)

type stubClient struct {
	status api.StatusSnapshot
}

func (s *stubClient) StartProcessing(context.Context, api.SessionConfig) (api.StatusSnapshot, error) {
	return s.status, nil
}
func (s *stubClient) Status(context.Context) (api.StatusSnapshot, error) { return s.status, nil }
func (s *stubClient) SubmitDecision(context.Context, string, api.DecisionPayload) (api.StatusSnapshot, error) {
	return s.status, nil
}
func (s *stubClient) SkipOffer(context.Context, string) (api.StatusSnapshot, error) {
	return s.status, nil
}
func (s *stubClient) SubmitToOzon(context.Context) (api.SubmitResult, error) {
	return api.SubmitResult{}, nil
}
func (s *stubClient) TaskInfo(context.Context, string) (json.RawMessage, error) { return nil, nil }
func (s *stubClient) ResetSession(context.Context) (api.StatusSnapshot, error) {
	return s.status, nil
}

func newTestApp() (*App, *session.Model) {
	client := &stubClient{}
	model := session.NewModel()
	cfg := config.Config{}
	cfg.Session.PollInterval = time.Second
	coordinator := &session.Coordinator{Client: client, Model: model}
	arbiter := &session.Arbiter{Client: client, Model: model}
	return New(context.Background(), cfg, model, coordinator, arbiter, nil), model
}

func strPtr(s string) *string { return &s }

func awaitingSnap(decisionID string) api.StatusSnapshot {
	return api.StatusSnapshot{
		StatusMessage:     "Требуется решение",
		PendingDecisionID: strPtr(decisionID),
		DecisionDetails: &api.DecisionDetails{
			OfferID: "offer-1",
			Name:    "Кружка керамическая",
			Suggestions: []api.Suggestion{
				{TypeID: 10, DescriptionCategoryID: 20, TypeName: "Кружка"},
				{TypeID: 11, DescriptionCategoryID: 21, TypeName: "Чашка"},
			},
		},
	}
}

func keyMsg(s string) tea.KeyMsg {
	if len([]rune(s)) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{}
}

func TestNewDecisionAutofillsForm(t *testing.T) {
	t.Parallel()
	a, m := newTestApp()

	m.Apply(awaitingSnap("d1"))
	a.Update(snapshotMsg(api.StatusSnapshot{}))

	require.Equal(t, "10", a.decisionInputs[inputTypeID].Value())
	require.Equal(t, "20", a.decisionInputs[inputDescCatID].Value())
	require.Zero(t, a.sugCursor)
}

func TestSameDecisionKeepsOperatorEdits(t *testing.T) {
	t.Parallel()
	a, m := newTestApp()

	m.Apply(awaitingSnap("d1"))
	a.Update(snapshotMsg(api.StatusSnapshot{}))
	a.decisionInputs[inputTypeID].SetValue("99")

	// a refresh of the same decision must not clobber the form
	a.Update(snapshotMsg(api.StatusSnapshot{}))
	require.Equal(t, "99", a.decisionInputs[inputTypeID].Value())

	// a new decision id resets it
	m.Apply(awaitingSnap("d2"))
	a.Update(snapshotMsg(api.StatusSnapshot{}))
	require.Equal(t, "10", a.decisionInputs[inputTypeID].Value())
}

func TestDecisionEnterRejectsNonNumericInput(t *testing.T) {
	t.Parallel()
	a, m := newTestApp()

	m.Apply(awaitingSnap("d1"))
	a.Update(snapshotMsg(api.StatusSnapshot{}))
	a.decisionInputs[inputTypeID].SetValue("abc")

	_, cmd := a.Update(keyMsg("enter"))
	require.Nil(t, cmd)
	require.Contains(t, a.status, "числовые")
}

func TestDecisionEnterIssuesCommand(t *testing.T) {
	t.Parallel()
	a, m := newTestApp()

	m.Apply(awaitingSnap("d1"))
	a.Update(snapshotMsg(api.StatusSnapshot{}))

	_, cmd := a.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
}

func TestViewShowsDecisionPanel(t *testing.T) {
	t.Parallel()
	a, m := newTestApp()

	m.Apply(awaitingSnap("d1"))
	a.Update(snapshotMsg(api.StatusSnapshot{}))

	out := a.View()
	require.Contains(t, out, "Требуется решение")
	require.Contains(t, out, "offer-1")
	require.Contains(t, out, "Кружка керамическая")
}

func TestViewShowsSubmissionPanelWhenReady(t *testing.T) {
	t.Parallel()
	a, m := newTestApp()

	m.Apply(api.StatusSnapshot{StatusMessage: "Все товары обработаны.", ItemsReadyForSubmission: 3})
	out := a.View()
	require.Contains(t, out, "Готово к отправке в Ozon: 3")
}

func TestFilterReranksSuggestions(t *testing.T) {
	t.Parallel()
	a, m := newTestApp()

	m.Apply(awaitingSnap("d1"))
	a.Update(snapshotMsg(api.StatusSnapshot{}))

	a.decisionInputs[inputFilter].SetValue("чашка")
	ranked := a.rankedSuggestions()
	require.Equal(t, 11, ranked[0].TypeID)
}

func TestConfigureEnterValidates(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp()
	a.state = viewConfigure
	a.configInputs[4].SetValue("0") // max items

	_, cmd := a.Update(keyMsg("enter"))
	require.Nil(t, cmd)
	require.Contains(t, a.status, "max items")
}

func TestResetConfirmModal(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp()

	a.Update(keyMsg("x"))
	require.Equal(t, modalConfirmReset, a.modal)
	require.Contains(t, a.View(), "Сбросить сессию?")

	a.Update(keyMsg("n"))
	require.Equal(t, modalNone, a.modal)

	a.Update(keyMsg("x"))
	_, cmd := a.Update(keyMsg("y"))
	require.Equal(t, modalNone, a.modal)
	require.NotNil(t, cmd)
}

func TestErrMsgShowsFriendlyStatus(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp()

	a.Update(errMsg{&api.APIError{StatusCode: 409, Detail: "товар ожидает решения"}})
	require.Contains(t, a.status, "товар ожидает решения")
}
