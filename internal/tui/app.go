package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"feedpilot/internal/api"
	"feedpilot/internal/config"
	"feedpilot/internal/journal"
	"feedpilot/internal/secrets"
	"feedpilot/internal/session"
)

// App ties the session model and its controllers to the terminal.
type App struct {
	ctx         context.Context
	cfg         config.Config
	model       *session.Model
	coordinator *session.Coordinator
	arbiter     *session.Arbiter
	journal     *journal.EntryRepo

	state appState
	modal modalState

	configInputs []textinput.Model
	configFocus  int

	decisionInputs []textinput.Model
	decisionFocus  int
	sugCursor      int
	lastDecisionID string

	entries   []journal.Entry
	status    string
	pollEvery time.Duration
}

type appState string

const (
	viewSession   appState = "session"
	viewConfigure appState = "configure"
	viewJournal   appState = "journal"
)

type modalState string

const (
	modalNone         modalState = ""
	modalConfirmReset modalState = "confirmReset"
)

// decision input slots
const (
	inputFilter = iota
	inputTypeID
	inputDescCatID
)

func New(ctx context.Context, cfg config.Config, model *session.Model, coordinator *session.Coordinator, arbiter *session.Arbiter, repo *journal.EntryRepo) *App {
	pollEvery := cfg.Session.PollInterval
	if pollEvery <= 0 {
		pollEvery = 3 * time.Second
	}
	a := &App{
		ctx:         ctx,
		cfg:         cfg,
		model:       model,
		coordinator: coordinator,
		arbiter:     arbiter,
		journal:     repo,
		state:       viewSession,
		pollEvery:   pollEvery,
	}
	a.configInputs = newConfigInputs(cfg.Session)
	a.decisionInputs = newDecisionInputs()
	return a
}

func newConfigInputs(defaults config.SessionConfig) []textinput.Model {
	labels := []struct {
		prompt string
		value  string
	}{
		{"Client-Id: ", defaults.ClientID},
		{"Api-Key: ", defaults.ClientSecret},
		{"Feed URL: ", defaults.FeedURL},
		{"Feed offset: ", strconv.Itoa(defaults.FeedOffset)},
		{"Max items: ", strconv.Itoa(defaults.MaxItems)},
		{"Keyword: ", defaults.Keyword},
	}
	inputs := make([]textinput.Model, 0, len(labels))
	for i, l := range labels {
		inp := textinput.New()
		inp.Prompt = l.prompt
		inp.SetValue(l.value)
		if i == 1 {
			inp.EchoMode = textinput.EchoPassword
		}
		if i == 0 {
			inp.Focus()
		}
		inputs = append(inputs, inp)
	}
	return inputs
}

func newDecisionInputs() []textinput.Model {
	inputs := make([]textinput.Model, 3)
	for i, prompt := range []string{"Filter: ", "Type id: ", "Category id: "} {
		inp := textinput.New()
		inp.Prompt = prompt
		inputs[i] = inp
	}
	inputs[inputFilter].Focus()
	return inputs
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.pollCmd(), a.tickCmd())
}

// commands

func (a *App) pollCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := a.coordinator.Poll(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg(snap)
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(a.pollEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) startCmd(cfg api.SessionConfig) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.coordinator.Start(a.ctx, cfg)
		if err != nil {
			return errMsg{err}
		}
		// remember working credentials; best effort
		_ = secrets.Store(secrets.Credentials{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret})
		return startedMsg(snap)
	}
}

func (a *App) decideCmd(decisionID string, typeID, descCatID int) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.arbiter.Decide(a.ctx, decisionID, typeID, descCatID)
		if err != nil {
			if errors.Is(err, session.ErrStaleDecision) || errors.Is(err, session.ErrActionInFlight) {
				return statusMsg("")
			}
			return errMsg{err}
		}
		return snapshotMsg(snap)
	}
}

func (a *App) skipCmd(decisionID string) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.arbiter.Skip(a.ctx, decisionID)
		if err != nil {
			if errors.Is(err, session.ErrStaleDecision) || errors.Is(err, session.ErrActionInFlight) {
				return statusMsg("")
			}
			return errMsg{err}
		}
		return snapshotMsg(snap)
	}
}

func (a *App) submitCmd() tea.Cmd {
	return func() tea.Msg {
		taskID, err := a.coordinator.Submit(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return submittedMsg{TaskID: taskID}
	}
}

func (a *App) taskInfoCmd() tea.Cmd {
	return func() tea.Msg {
		info, err := a.coordinator.RefreshTaskInfo(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return taskInfoMsg(info)
	}
}

func (a *App) resetCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := a.coordinator.Reset(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return resetMsg(snap)
	}
}

func (a *App) loadJournalCmd() tea.Cmd {
	sessionID := a.model.SessionID()
	return func() tea.Msg {
		if a.journal == nil {
			return journalMsg(nil)
		}
		entries, err := a.journal.List(a.ctx, sessionID)
		if err != nil {
			return errMsg{err}
		}
		return journalMsg(entries)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		switch a.state {
		case viewConfigure:
			return a.handleConfigureKey(m)
		case viewJournal:
			return a.handleJournalKey(m)
		}
		if a.model.ShowDecisionPanel() {
			return a.handleDecisionKey(m)
		}
		return a.handleSessionKey(m)

	case tickMsg:
		ph := a.model.Phase()
		if ph == session.PhaseProcessing || ph == session.PhaseStarting || a.model.TrackingTask() {
			return a, tea.Batch(a.pollCmd(), a.tickCmd())
		}
		return a, a.tickCmd()

	case startedMsg:
		a.state = viewSession
		a.status = ""
		a.syncDecisionForm()
		return a, nil

	case snapshotMsg:
		a.syncDecisionForm()
		return a, nil

	case submittedMsg:
		a.status = "задание отправлено: " + m.TaskID
		return a, nil

	case taskInfoMsg:
		return a, nil

	case resetMsg:
		a.status = ""
		a.lastDecisionID = ""
		a.sugCursor = 0
		return a, nil

	case journalMsg:
		a.entries = []journal.Entry(m)
		return a, nil

	case statusMsg:
		a.status = string(m)
		a.syncDecisionForm()
		return a, nil

	case errMsg:
		a.status = friendlyError(m.error)
		return a, nil
	}
	return a, nil
}

// syncDecisionForm resets the decision form whenever a new decision id
// arrives: filter cleared, cursor on the top suggestion, type and
// category prefilled from it.
func (a *App) syncDecisionForm() {
	id := a.model.CurrentDecisionID()
	if id == a.lastDecisionID {
		return
	}
	a.lastDecisionID = id
	a.sugCursor = 0
	a.decisionInputs[inputFilter].SetValue("")
	a.decisionInputs[inputTypeID].SetValue("")
	a.decisionInputs[inputDescCatID].SetValue("")
	a.setDecisionFocus(inputFilter)
	if id == "" {
		return
	}
	if d := a.model.CurrentDecision(); d != nil {
		if typeID, descCatID, ok := session.Autofill(d); ok {
			a.decisionInputs[inputTypeID].SetValue(strconv.Itoa(typeID))
			a.decisionInputs[inputDescCatID].SetValue(strconv.Itoa(descCatID))
		}
	}
}

func (a *App) setDecisionFocus(i int) {
	a.decisionInputs[a.decisionFocus].Blur()
	a.decisionFocus = i
	a.decisionInputs[a.decisionFocus].Focus()
}

func (a *App) rankedSuggestions() []api.Suggestion {
	d := a.model.CurrentDecision()
	if d == nil {
		return nil
	}
	return session.RankSuggestions(a.decisionInputs[inputFilter].Value(), d.Suggestions)
}

func (a *App) handleSessionKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "c":
		if a.model.StartEnabled() {
			a.state = viewConfigure
			a.status = ""
		}
	case "u":
		if a.model.SubmitEnabled() {
			a.status = "отправка в Ozon..."
			return a, a.submitCmd()
		}
	case "i":
		if a.model.ShowTaskPanel() {
			return a, a.taskInfoCmd()
		}
	case "r":
		return a, a.pollCmd()
	case "v":
		a.state = viewJournal
		return a, a.loadJournalCmd()
	case "x":
		a.modal = modalConfirmReset
	}
	return a, nil
}

func (a *App) handleDecisionKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab", "shift+tab":
		dir := 1
		if m.String() == "shift+tab" {
			dir = -1
		}
		a.setDecisionFocus((a.decisionFocus + dir + len(a.decisionInputs)) % len(a.decisionInputs))
		return a, nil
	case "up":
		if a.sugCursor > 0 {
			a.sugCursor--
		}
		return a, nil
	case "down":
		if a.sugCursor < len(a.rankedSuggestions())-1 {
			a.sugCursor++
		}
		return a, nil
	case "ctrl+a":
		ranked := a.rankedSuggestions()
		if a.sugCursor < len(ranked) {
			s := ranked[a.sugCursor]
			a.decisionInputs[inputTypeID].SetValue(strconv.Itoa(s.TypeID))
			a.decisionInputs[inputDescCatID].SetValue(strconv.Itoa(s.DescriptionCategoryID))
		}
		return a, nil
	case "ctrl+k":
		if !a.model.DecisionControlsEnabled() {
			return a, nil
		}
		id := a.model.CurrentDecisionID()
		if id == "" {
			return a, nil
		}
		a.status = ""
		return a, a.skipCmd(id)
	case "ctrl+x":
		a.modal = modalConfirmReset
		return a, nil
	case "enter":
		if !a.model.DecisionControlsEnabled() {
			return a, nil
		}
		id := a.model.CurrentDecisionID()
		if id == "" {
			return a, nil
		}
		typeID, err1 := strconv.Atoi(strings.TrimSpace(a.decisionInputs[inputTypeID].Value()))
		descCatID, err2 := strconv.Atoi(strings.TrimSpace(a.decisionInputs[inputDescCatID].Value()))
		if err1 != nil || err2 != nil || typeID <= 0 || descCatID <= 0 {
			a.status = "введите числовые type id и category id"
			return a, nil
		}
		a.status = ""
		return a, a.decideCmd(id, typeID, descCatID)
	}
	var cmd tea.Cmd
	a.decisionInputs[a.decisionFocus], cmd = a.decisionInputs[a.decisionFocus].Update(m)
	if a.decisionFocus == inputFilter {
		a.sugCursor = 0
	}
	return a, cmd
}

func (a *App) handleConfigureKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.state = viewSession
		a.status = ""
		return a, nil
	case "tab", "shift+tab", "up", "down":
		dir := 1
		if m.String() == "shift+tab" || m.String() == "up" {
			dir = -1
		}
		a.configInputs[a.configFocus].Blur()
		a.configFocus = (a.configFocus + dir + len(a.configInputs)) % len(a.configInputs)
		a.configInputs[a.configFocus].Focus()
		return a, nil
	case "enter":
		cfg, err := a.collectConfig()
		if err != nil {
			a.status = err.Error()
			return a, nil
		}
		a.status = "запуск обработки..."
		return a, a.startCmd(cfg)
	}
	var cmd tea.Cmd
	a.configInputs[a.configFocus], cmd = a.configInputs[a.configFocus].Update(m)
	return a, cmd
}

func (a *App) collectConfig() (api.SessionConfig, error) {
	get := func(i int) string { return strings.TrimSpace(a.configInputs[i].Value()) }
	offset, err := strconv.Atoi(get(3))
	if err != nil || offset < 0 {
		return api.SessionConfig{}, fmt.Errorf("feed offset: нужно целое число >= 0")
	}
	maxItems, err := strconv.Atoi(get(4))
	if err != nil || maxItems <= 0 {
		return api.SessionConfig{}, fmt.Errorf("max items: нужно целое число > 0")
	}
	cfg := api.SessionConfig{
		ClientID:     get(0),
		ClientSecret: get(1),
		FeedOffset:   offset,
		MaxItems:     maxItems,
	}
	if v := get(2); v != "" {
		cfg.FeedURL = &v
	}
	if v := get(5); v != "" {
		cfg.Keyword = &v
	}
	return cfg, nil
}

func (a *App) handleJournalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "esc", "v":
		a.state = viewSession
		return a, nil
	case "r":
		return a, a.loadJournalCmd()
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "y", "Y":
		a.modal = modalNone
		a.status = "сброс сессии..."
		return a, a.resetCmd()
	case "n", "N", "esc":
		a.modal = modalNone
	}
	return a, nil
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewConfigure:
		body = a.renderConfigure()
	case viewJournal:
		body = a.renderJournal()
	default:
		body = a.renderSession()
	}
	if a.modal == modalConfirmReset {
		body += "\n\n" + errStyle.Render("Сбросить сессию? Все накопленные решения будут потеряны.") + " [y] Да  [n] Нет"
	}
	return body
}

// styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func (a *App) renderSession() string {
	title := titleStyle.Render("FeedPilot - " + a.model.Phase().String())
	out := title + "\n" + a.model.StatusText() + "\n"

	if snap, ok := a.model.Snapshot(); ok {
		out += fmt.Sprintf("Обработано: %d из %d (позиция в фиде: %d)  Готово к отправке: %d\n",
			snap.ProcessedItemCount, snap.TotalOffersToConsider, snap.CurrentOfferIndex, snap.ItemsReadyForSubmission)
	}
	if banner := a.model.Banner(); banner != "" {
		out += errStyle.Render("Ошибка: "+banner) + "\n"
	}

	if a.model.ShowDecisionPanel() {
		out += "\n" + a.renderDecisionPanel()
	}
	if a.model.ShowSubmissionPanel() {
		out += "\n" + a.renderSubmissionPanel()
	}
	if a.model.ShowTaskPanel() {
		out += "\n" + a.renderTaskPanel()
	}

	out += "\n" + dimStyle.Render(a.footer())
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) footer() string {
	if a.model.ShowDecisionPanel() {
		return "[enter] Решить  [ctrl+k] Пропустить  [ctrl+a] Принять подсказку  [tab] Поля  [ctrl+x] Сброс  [ctrl+c] Выход"
	}
	keys := []string{}
	if a.model.StartEnabled() {
		keys = append(keys, "[c] Конфигурация")
	}
	if a.model.SubmitEnabled() {
		keys = append(keys, "[u] Отправить в Ozon")
	}
	if a.model.ShowTaskPanel() {
		keys = append(keys, "[i] Статус задания")
	}
	keys = append(keys, "[r] Обновить", "[v] Журнал", "[x] Сброс", "[q] Выход")
	return strings.Join(keys, "  ")
}

func (a *App) renderDecisionPanel() string {
	d := a.model.CurrentDecision()
	if d == nil {
		return ""
	}
	out := titleStyle.Render("Требуется решение") + "\n"
	out += fmt.Sprintf("Товар: %s\nНазвание: %s\n", d.OfferID, d.Name)
	if d.CurrentSimilarity != nil {
		out += fmt.Sprintf("Текущее сходство: %.0f%%\n", *d.CurrentSimilarity*100)
	}
	ranked := a.rankedSuggestions()
	if len(ranked) == 0 {
		out += dimStyle.Render("Подсказок нет, введите идентификаторы вручную.") + "\n"
	}
	for i, s := range ranked {
		marker := " "
		if i == a.sugCursor {
			marker = "▶"
		}
		sim := ""
		if s.Similarity != nil {
			sim = fmt.Sprintf("  %.0f%%", *s.Similarity*100)
		}
		out += fmt.Sprintf("%s %-40s  type=%d cat=%d%s\n", marker, s.TypeName, s.TypeID, s.DescriptionCategoryID, sim)
	}
	out += a.decisionInputs[inputFilter].View() + "\n"
	out += a.decisionInputs[inputTypeID].View() + "  " + a.decisionInputs[inputDescCatID].View()
	if !a.model.DecisionControlsEnabled() {
		out += "\n" + dimStyle.Render("отправка решения...")
	}
	return out
}

func (a *App) renderSubmissionPanel() string {
	snap, _ := a.model.Snapshot()
	line := fmt.Sprintf("Готово к отправке в Ozon: %d товаров.", snap.ItemsReadyForSubmission)
	if a.model.SubmitEnabled() {
		line += "  [u] Отправить"
	} else {
		line += "  " + dimStyle.Render("отправка...")
	}
	return titleStyle.Render("Отправка") + "\n" + line
}

func (a *App) renderTaskPanel() string {
	out := titleStyle.Render("Задание Ozon") + "\n"
	out += "Task id: " + a.model.CurrentTaskID()
	if info := a.model.TaskInfo(); len(info) > 0 {
		out += "\n" + formatTaskInfo(info)
	}
	return out
}

// formatTaskInfo pretty-prints the opaque task payload. The structure
// is owned by the backend; anything unparseable renders raw.
func formatTaskInfo(info json.RawMessage) string {
	var buf map[string]any
	if err := json.Unmarshal(info, &buf); err != nil {
		return string(info)
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return string(info)
	}
	return string(pretty)
}

func (a *App) renderConfigure() string {
	out := titleStyle.Render("Конфигурация сессии") + "\n"
	for _, inp := range a.configInputs {
		out += inp.View() + "\n"
	}
	out += dimStyle.Render("[enter] Запустить  [tab] Поля  [esc] Назад")
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderJournal() string {
	out := titleStyle.Render("Журнал действий") + "\n"
	if len(a.entries) == 0 {
		out += dimStyle.Render("Записей пока нет.") + "\n"
	}
	for _, e := range a.entries {
		line := fmt.Sprintf("%s  %-7s", e.At.Local().Format("15:04:05"), e.Action)
		if e.OfferID != nil {
			line += "  товар " + *e.OfferID
		}
		if e.TypeID != nil && e.DescriptionCategoryID != nil {
			line += fmt.Sprintf("  type=%d cat=%d", *e.TypeID, *e.DescriptionCategoryID)
		}
		if e.TaskID != nil {
			line += "  task " + *e.TaskID
		}
		out += line + "\n"
	}
	out += dimStyle.Render("[r] Обновить  [esc] Назад  [q] Выход")
	return out
}

// friendlyError maps controller errors onto a status line. Validation
// text is shown as-is; backend rejections carry their detail; anything
// else is a connectivity problem.
func friendlyError(err error) string {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, session.ErrValidation):
		return err.Error()
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrActionInFlight):
		return err.Error()
	case errors.As(err, &apiErr):
		return "сервер отклонил запрос: " + apiErr.Detail
	default:
		return "нет связи с сервером: " + err.Error()
	}
}

// messages

type startedMsg api.StatusSnapshot

type snapshotMsg api.StatusSnapshot

type submittedMsg struct{ TaskID string }

type taskInfoMsg json.RawMessage

type resetMsg api.StatusSnapshot

type journalMsg []journal.Entry

type statusMsg string

type tickMsg time.Time

type errMsg struct{ error }
