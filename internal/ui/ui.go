package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ReviewView ViewState = iota
	ConfirmView
	SavingView
	ResultView
)

// Saver saves an edited generation. [tasks.PlaylistEngine] implements it.
type Saver interface {
	Save(ctx context.Context, req tasks.SaveRequest, progress chan<- tasks.ProgressUpdate) (*models.PlaylistRef, error)
}

// Options configures a review [Model].
type Options struct {
	Result *models.GenerationResult
	Seeds  []models.Track
	Prompt string
	Saver  Saver
	// Persist is called with the result after every edit and after a successful save.
	Persist func(*models.GenerationResult) error
}

// Model represents the review screen state.
type Model struct {
	ctx          context.Context
	view         ViewState
	result       *models.GenerationResult
	seeds        []models.Track
	prompt       string
	saver        Saver
	persist      func(*models.GenerationResult) error
	width        int
	height       int
	entries      list.Model
	progressChan chan tasks.ProgressUpdate
	done         chan Msg
	progress     tasks.ProgressUpdate
	saved        *models.PlaylistRef
	err          error
	notice       string
	help         help.Model
	keys         keyMap
}

// NewModel creates a review model over a copy of opts.Result.
func NewModel(ctx context.Context, opts Options) *Model {
	result := &models.GenerationResult{}
	if opts.Result != nil {
		*result = *opts.Result
		result.Entries = append([]models.ResolvedEntry(nil), opts.Result.Entries...)
	}

	entries := list.New(entryItems(result.Entries), newEntryDelegate(), 0, 0)
	entries.Title = result.PlaylistName
	entries.SetFilteringEnabled(false)
	entries.SetShowHelp(false)
	entries.Styles.Title = styles.title

	return &Model{
		ctx:     ctx,
		view:    ReviewView,
		result:  result,
		seeds:   opts.Seeds,
		prompt:  opts.Prompt,
		saver:   opts.Saver,
		persist: opts.Persist,
		entries: entries,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the list as edited.
func (m *Model) Result() *models.GenerationResult { return m.result }

// Saved returns the created playlist, or nil when nothing was saved.
func (m *Model) Saved() *models.PlaylistRef { return m.saved }

// Err returns the last save or persist error.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.entries.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ReviewView:
			return m.handleReviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			return m, m.waitForProgress()
		case MsgSaveComplete:
			res := msg.data.(saveResult)
			m.progressChan = nil
			m.err = res.err
			if res.err == nil {
				m.saved = res.playlist
				m.result.Playlist = res.playlist
				m.store()
			}
			m.view = ResultView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.entries, cmd = m.entries.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ReviewView:
		return m.renderReview()
	case ConfirmView:
		return m.renderConfirm()
	case SavingView:
		return m.renderSaving()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.moveUp):
		m.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.move(1)
		return m, nil
	case key.Matches(msg, m.keys.remove):
		m.remove()
		return m, nil
	case key.Matches(msg, m.keys.save):
		if m.saver == nil {
			m.notice = "Saving is not available"
			return m, nil
		}
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.entries, cmd = m.entries.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = SavingView
		return m, m.startSave()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = ReviewView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ReviewView
		m.err = nil
	}
	return m, nil
}

// move shifts the selected entry by delta positions and keeps it selected.
func (m *Model) move(delta int) {
	from := m.entries.Index()
	to := from + delta
	if to < 0 || to >= len(m.result.Entries) {
		return
	}

	entries, err := models.Reorder(m.result.Entries, from, to)
	if err != nil {
		m.err = err
		return
	}
	m.result.Entries = entries
	m.entries.SetItems(entryItems(entries))
	m.entries.Select(to)
	m.store()
}

func (m *Model) remove() {
	item, ok := m.entries.SelectedItem().(entryItem)
	if !ok {
		return
	}

	idx := m.entries.Index()
	m.result.Entries = models.RemoveTrack(m.result.Entries, item.entry.Track.ID)
	m.entries.SetItems(entryItems(m.result.Entries))
	if idx >= len(m.result.Entries) && idx > 0 {
		idx = len(m.result.Entries) - 1
	}
	m.entries.Select(idx)
	m.notice = fmt.Sprintf("Removed %s", item.entry.Track.Title)
	m.store()
}

func (m *Model) store() {
	if m.persist == nil {
		return
	}
	if err := m.persist(m.result); err != nil {
		m.err = err
	}
}

func (m *Model) startSave() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 10)
	progress := m.progressChan
	req := tasks.SaveRequest{
		Name:    m.result.PlaylistName,
		Entries: m.result.Entries,
		Seeds:   m.seeds,
		Prompt:  m.prompt,
	}

	m.done = make(chan Msg, 1)
	done := m.done
	go func() {
		playlist, err := m.saver.Save(m.ctx, req, progress)
		done <- saveCompleteMsg(playlist, err)
		close(progress)
	}()

	return m.waitForProgress()
}

// waitForProgress relays one progress update, or the completion once the channel closes.
func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) renderReview() string {
	footer := m.help.ShortHelpView(m.keys.ShortHelp())
	switch {
	case m.err != nil:
		footer = styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n" + footer
	case m.notice != "":
		footer = styles.warn.Render(m.notice) + "\n" + footer
	}
	return fmt.Sprintf("%s\n%s", m.entries.View(), footer)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Save '%s' to Spotify?", m.result.PlaylistName))
	info := fmt.Sprintf("\nTracks: %d\nVisibility: private\n", len(m.result.Entries))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSaving() string {
	title := styles.title.Render("Saving Playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.CreatePlaylist:
		phase = "Creating playlist..."
	case tasks.AddTracks:
		phase = "Adding tracks..."
	default:
		phase = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Save failed: %v", m.err)), helpView)
	}

	title := styles.ok.Render("✓ Playlist saved")
	info := fmt.Sprintf("\n%s (%d tracks)\n%s", m.saved.Name, len(m.result.Entries), m.saved.ExternalURLs.Spotify)
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}
