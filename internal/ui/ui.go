package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/alpsaur/SortYourMusic/internal/formatter"
	"github.com/alpsaur/SortYourMusic/internal/models"
	"github.com/alpsaur/SortYourMusic/internal/shared"
	"github.com/alpsaur/SortYourMusic/internal/tasks"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Engine is the part of [tasks.PlaylistEngine] the TUI drives.
type Engine interface {
	LoadPlaylist(ctx context.Context, playlistID string, progress chan<- tasks.ProgressUpdate) (*models.PlaylistTable, *tasks.LoadReport, error)
	Table() *models.PlaylistTable
	Sort(spec models.SortSpec) (*models.PlaylistTable, error)
	Commit(sorted *models.PlaylistTable) error
	SaveOrder(ctx context.Context, playlistID string, newOrder []string, opts tasks.SaveOptions, progress chan<- tasks.ProgressUpdate) (*tasks.SaveResult, error)
	Cancel()
}

var _ Engine = (*tasks.PlaylistEngine)(nil)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	InputView ViewState = iota
	LoadingView
	TableView
	KeyPickerView
	ConfirmView
	SavingView
)

// columnWidths follows [formatter.Columns].
var columnWidths = []int{4, 28, 22, 10, 7, 4, 5, 6, 5, 6, 7, 8, 4}

// keyColumns maps a sort key to the column that shows its arrow.
var keyColumns = map[models.SortKey]int{
	models.KeyIndex:            0,
	models.KeyTitle:            1,
	models.KeyArtist:           2,
	models.KeyRelease:          3,
	models.KeyLength:           4,
	models.KeyPopularity:       5,
	models.KeyBPM:              6,
	models.KeyEnergy:           7,
	models.KeyDance:            8,
	models.KeyLoud:             9,
	models.KeyValence:          10,
	models.KeyAcoustic:         11,
	models.KeyArtistSeparation: 12,
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	engine Engine
	view   ViewState
	width  int
	height int

	input   textinput.Model
	table   table.Model
	keyList list.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	playlistID string
	spec       models.SortSpec
	report     *tasks.LoadReport
	progress   tasks.ProgressUpdate
	status     string
	err        error
}

// NewModel creates a new TUI model. A non-empty playlistID is loaded on start.
func NewModel(ctx context.Context, engine Engine, playlistID string) *Model {
	ti := textinput.New()
	ti.Prompt = "Playlist: "
	ti.Placeholder = "id, spotify:playlist: uri, or open.spotify.com link"
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	tbl := table.New(
		table.WithColumns(columns(models.SortSpec{Key: models.KeyIndex})),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	tbl.SetStyles(styles.tableStyles())

	m := &Model{
		ctx:     ctx,
		engine:  engine,
		view:    InputView,
		input:   ti,
		table:   tbl,
		keyList: newKeyList(models.KeyIndex, 40, 20),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ok)),
		help:    help.New(),
		keys:    newKeyMap(),
		spec:    models.SortSpec{Key: models.KeyIndex},
	}
	if id, err := models.ParsePlaylistID(playlistID); err == nil {
		m.playlistID = id
		m.view = LoadingView
	}
	return m
}

// Init starts the initial load, or the input cursor blink when no playlist was given.
func (m *Model) Init() tea.Cmd {
	if m.view == LoadingView {
		return tea.Batch(m.spinner.Tick, m.load(m.playlistID))
	}
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-9, 3))
		m.keyList.SetSize(msg.Width-4, max(msg.Height-4, 5))
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.view != LoadingView && m.view != SavingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case relayMsg:
		m.progress = msg.update
		return m, msg.next

	case loadedMsg:
		return m.handleLoaded(msg)

	case savedMsg:
		return m.handleSaved(msg)

	case tea.KeyMsg:
		switch m.view {
		case InputView:
			return m.handleInputKeys(msg)
		case LoadingView, SavingView:
			return m.handleBusyKeys(msg)
		case TableView:
			return m.handleTableKeys(msg)
		case KeyPickerView:
			return m.handlePickerKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case InputView:
		return m.renderInput()
	case LoadingView, SavingView:
		return m.renderBusy()
	case TableView:
		return m.renderTable()
	case KeyPickerView:
		return m.keyList.View()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) handleLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, shared.ErrLoadAbandoned) {
		return m, nil
	}
	if msg.err != nil {
		m.err = msg.err
		m.view = InputView
		return m, m.input.Focus()
	}

	m.err = nil
	m.report = msg.report
	m.playlistID = msg.table.PlaylistID
	m.spec = models.SortSpec{Key: models.KeyIndex}
	m.refresh(msg.table)
	m.table.SetCursor(0)
	m.view = TableView

	m.status = fmt.Sprintf("Loaded %d tracks", msg.table.Len())
	if msg.report != nil && msg.report.Degraded() {
		m.status += fmt.Sprintf(" (albums %s, features %s, bpm %s)",
			msg.report.Albums.Status, msg.report.Features.Status, msg.report.BPM.Status)
	}
	return m, nil
}

func (m *Model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	m.view = TableView
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		var wbErr *tasks.WriteBackError
		if errors.As(msg.err, &wbErr) {
			m.status = fmt.Sprintf("Save stopped after %d of %d moves; press w to retry", wbErr.Applied, wbErr.Total)
		}
		return m, nil
	}

	m.err = nil
	if t := m.engine.Table(); t != nil {
		m.refresh(t)
	}
	switch {
	case msg.result == nil:
		m.status = "Saved"
	case len(msg.result.Moves) == 0:
		m.status = "Already in this order upstream"
	default:
		m.status = fmt.Sprintf("Saved with %d moves", msg.result.Applied)
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		if m.engine.Table() != nil {
			m.view = TableView
			m.input.Blur()
		}
		return m, nil
	case tea.KeyEnter:
		id, err := models.ParsePlaylistID(m.input.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.playlistID = id
		m.progress = tasks.ProgressUpdate{}
		m.view = LoadingView
		m.input.Blur()
		return m, tea.Batch(m.spinner.Tick, m.load(id))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleBusyKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.engine.Cancel()
		return m, tea.Quit
	case m.view == LoadingView && key.Matches(msg, m.keys.back):
		m.engine.Cancel()
		m.status = "Load cancelled"
		if m.engine.Table() != nil {
			m.view = TableView
			return m, nil
		}
		m.view = InputView
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *Model) handleTableKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		return m, m.applySort(models.SortSpec{Key: m.cycleKey(1), Direction: m.spec.Direction})
	case key.Matches(msg, m.keys.prev):
		return m, m.applySort(models.SortSpec{Key: m.cycleKey(-1), Direction: m.spec.Direction})
	case key.Matches(msg, m.keys.reverse):
		dir := models.Descending
		if m.spec.Direction == models.Descending {
			dir = models.Ascending
		}
		return m, m.applySort(models.SortSpec{Key: m.spec.Key, Direction: dir})
	case key.Matches(msg, m.keys.shuffle):
		return m, m.applySort(models.SortSpec{Key: models.KeyRandom})
	case key.Matches(msg, m.keys.pick):
		m.keyList = newKeyList(m.spec.Key, max(m.width-4, 40), max(m.height-4, 20))
		m.view = KeyPickerView
		return m, nil
	case key.Matches(msg, m.keys.save):
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.open):
		m.input.SetValue("")
		m.view = InputView
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), msg.String() == "q":
		m.view = TableView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.view = TableView
		if item, ok := m.keyList.SelectedItem().(sortKeyItem); ok {
			return m, m.applySort(models.SortSpec{Key: item.key, Direction: m.spec.Direction})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.keyList, cmd = m.keyList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.progress = tasks.ProgressUpdate{}
		m.view = SavingView
		return m, tea.Batch(m.spinner.Tick, m.save())
	case key.Matches(msg, m.keys.no):
		m.view = TableView
	}
	return m, nil
}

// cycleKey steps through the keys in display order, skipping the random order.
func (m *Model) cycleKey(delta int) models.SortKey {
	keys := slices.DeleteFunc(slices.Clone(models.SortKeys), func(k models.SortKey) bool { return k == models.KeyRandom })
	i := slices.Index(keys, m.spec.Key)
	if i < 0 {
		i = 0
	}
	return keys[(i+delta+len(keys))%len(keys)]
}

// applySort sorts and commits the engine's table and redraws it.
func (m *Model) applySort(spec models.SortSpec) tea.Cmd {
	sorted, err := m.engine.Sort(spec)
	if err == nil {
		err = m.engine.Commit(sorted)
	}
	if err != nil {
		m.err = err
		return nil
	}
	m.err = nil
	m.spec = spec
	m.status = ""
	m.refresh(m.engine.Table())
	m.table.SetCursor(0)
	return nil
}

func (m *Model) load(id string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return runWithProgress(func(progress chan<- tasks.ProgressUpdate) tea.Msg {
		t, report, err := engine.LoadPlaylist(ctx, id, progress)
		return loadedMsg{table: t, report: report, err: err}
	})
}

func (m *Model) save() tea.Cmd {
	t := m.engine.Table()
	if t == nil {
		return func() tea.Msg { return savedMsg{err: shared.ErrNoTable} }
	}
	ctx, engine := m.ctx, m.engine
	id, order := t.PlaylistID, t.Identities()
	return runWithProgress(func(progress chan<- tasks.ProgressUpdate) tea.Msg {
		result, err := engine.SaveOrder(ctx, id, order, tasks.SaveOptions{}, progress)
		return savedMsg{result: result, err: err}
	})
}

// refresh rebuilds the table rows from t.
func (m *Model) refresh(t *models.PlaylistTable) {
	if t == nil {
		return
	}
	rows := make([]table.Row, t.Len())
	for i := range rows {
		cells := formatter.Cells(t, i)
		for j, c := range cells {
			if c == "" {
				cells[j] = formatter.Unknown
			}
		}
		rows[i] = cells
	}
	m.table.SetColumns(columns(m.spec))
	m.table.SetRows(rows)
}

func columns(spec models.SortSpec) []table.Column {
	arrow := "▲"
	if spec.Direction == models.Descending && spec.Key != models.KeyArtistSeparation {
		arrow = "▼"
	}
	active, ok := keyColumns[spec.Key]
	if !ok {
		active = -1
	}

	cols := make([]table.Column, len(formatter.Columns))
	for i, title := range formatter.Columns {
		width := columnWidths[i]
		if i == active {
			title += " " + arrow
			width += 2
		}
		cols[i] = table.Column{Title: title, Width: width}
	}
	return cols
}

func (m *Model) renderInput() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Sort Your Music"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back}))
	return b.String()
}

func (m *Model) renderBusy() string {
	title := "Loading playlist"
	if m.view == SavingView {
		title = "Saving order"
	}

	phase := phaseLabel(m.progress)
	if m.progress.Message != "" {
		phase += "\n" + styles.help.Render(m.progress.Message)
	}

	helpView := m.help.ShortHelpView([]key.Binding{key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))})
	if m.view == LoadingView {
		helpView = m.help.ShortHelpView([]key.Binding{key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))})
	}
	return fmt.Sprintf("%s\n%s %s\n\n%s", styles.title.Render(title), m.spinner.View(), phase, helpView)
}

func phaseLabel(u tasks.ProgressUpdate) string {
	counted := func(label string) string {
		if u.Total > 0 {
			return fmt.Sprintf("%s (%d/%d)", label, u.Step, u.Total)
		}
		return label
	}
	switch u.Phase {
	case tasks.FetchPlaylist:
		return "Fetching playlist..."
	case tasks.FetchTracks:
		return counted("Fetching tracks")
	case tasks.FetchAlbums:
		return counted("Fetching albums")
	case tasks.FetchFeatures:
		return counted("Fetching audio features")
	case tasks.FetchBPM:
		return counted("Looking up tempo")
	case tasks.Planning:
		return "Planning moves..."
	case tasks.ApplyMove:
		return counted("Applying moves")
	case tasks.Verify:
		return "Verifying..."
	default:
		return "Processing..."
	}
}

func (m *Model) renderTable() string {
	t := m.engine.Table()
	if t == nil {
		return m.renderInput()
	}

	name := t.Name
	if name == "" {
		name = t.PlaylistID
	}
	title := styles.title.Render(fmt.Sprintf("%s · %d tracks", name, t.Len()))

	order := fmt.Sprintf("Sorted by %s", m.spec.Key)
	switch m.spec.Key {
	case models.KeyRandom, models.KeyArtistSeparation:
	default:
		order += fmt.Sprintf(" (%s)", m.spec.Direction)
	}
	if sep := t.ArtistSeparation(); sep.MinGap > 0 {
		order += fmt.Sprintf(" · closest artist repeat %d", sep.MinGap)
	}

	var status string
	switch {
	case m.err != nil && m.status != "":
		status = styles.err.Render(fmt.Sprintf("%s: %v", m.status, m.err))
	case m.err != nil:
		status = styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	case m.report != nil && m.report.Degraded() && strings.HasPrefix(m.status, "Loaded"):
		status = styles.warn.Render(m.status)
	case m.status != "":
		status = styles.ok.Render(m.status)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", title, styles.help.Render(order), m.table.View(), status, m.help.View(m.keys))
}

func (m *Model) renderConfirm() string {
	t := m.engine.Table()
	name := m.playlistID
	if t != nil && t.Name != "" {
		name = t.Name
	}
	title := styles.title.Render(fmt.Sprintf("Save this order to '%s'?", name))
	info := fmt.Sprintf("Sorted by %s. The playlist will be reordered upstream with range moves.\n", m.spec.Key)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
