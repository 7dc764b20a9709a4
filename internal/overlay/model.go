package overlay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultColor is used for domains without a color.
const DefaultColor = "#aaaaaa"

// UnknownLabel stands in for a domain or category that could not be resolved.
const UnknownLabel = "Unknown"

// Source is what the overlay polls.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
	Attributes(ctx context.Context) ([]Attribute, error)
	Stop(ctx context.Context, id int64) error
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Focus key.Binding
	Last  key.Binding
	Stop  key.Binding
	Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
		Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
		Focus: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "focus")),
		Last:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "latest")),
		Stop:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Entry is an open record with its resolved labels.
type Entry struct {
	Record
	Domain   string
	Category string
	Color    string
}

// Label renders "domain - category | elapsed".
func (e Entry) Label(now time.Time) string {
	return fmt.Sprintf("%s - %s | %s", e.Domain, e.Category, FormatElapsed(now.Sub(e.TimeIn)))
}

type (
	tickMsg    time.Time
	entriesMsg struct {
		entries []Entry
		err     error
	}
	stoppedMsg struct {
		id  int64
		err error
	}
	focusSavedMsg struct{ err error }
)

// Model is the Bubble Tea model for the overlay.
type Model struct {
	src      Source
	interval time.Duration
	now      func() time.Time
	keys     keyMap

	entries []Entry
	cursor  int
	focused int64
	loaded  bool
	onFocus func(id int64) error
	err     error
	// LoggedOut is set when the session could not be refreshed.
	LoggedOut bool
}

// NewModel polls src every interval (1s when zero).
func NewModel(src Source, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{src: src, interval: interval, now: time.Now, keys: defaultKeys()}
}

// WithFocus focuses record id once it shows up as open.
func (m Model) WithFocus(id int64) Model {
	m.focused = id
	return m
}

// OnFocusChange registers fn to run whenever a different record is focused.
func (m Model) OnFocusChange(fn func(id int64) error) Model {
	m.onFocus = fn
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetch() tea.Cmd {
	src, timeout := m.src, m.interval
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), max(timeout, 5*time.Second))
		defer cancel()
		entries, err := loadEntries(ctx, src)
		return entriesMsg{entries: entries, err: err}
	}
}

// loadEntries fetches records and labels and keeps the open records,
// newest first.
func loadEntries(ctx context.Context, src Source) ([]Entry, error) {
	records, err := src.Records(ctx)
	if err != nil {
		return nil, err
	}
	attrs, err := src.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Attribute, len(attrs))
	for _, a := range attrs {
		byID[a.ID] = a
	}
	out := []Entry{}
	for _, r := range records {
		if r.TimeOut != nil {
			continue
		}
		e := Entry{Record: r, Domain: UnknownLabel, Category: UnknownLabel, Color: DefaultColor}
		if d, ok := byID[r.DomainID]; ok {
			e.Domain = d.Name
			if d.Color != nil && *d.Color != "" {
				e.Color = *d.Color
			}
		}
		if c, ok := byID[r.CategoryID]; ok {
			e.Category = c.Name
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimeIn.After(out[j].TimeIn) })
	return out, nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	prev := m.focused
	next, cmd := m.update(msg)
	if next.focused == prev || next.focused == 0 || next.onFocus == nil {
		return next, cmd
	}
	fn, id := next.onFocus, next.focused
	remember := func() tea.Msg {
		if err := fn(id); err != nil {
			return focusSavedMsg{err: err}
		}
		return nil
	}
	return next, tea.Batch(cmd, remember)
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case focusSavedMsg:
		m.err = msg.err
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case entriesMsg:
		if errors.Is(msg.err, ErrLoggedOut) {
			m.LoggedOut = true
			return m, tea.Quit
		}
		m.err = msg.err
		if msg.err == nil {
			m.setEntries(msg.entries)
		}
		return m, nil

	case stoppedMsg:
		m.err = msg.err
		if errors.Is(msg.err, ErrLoggedOut) {
			m.LoggedOut = true
			return m, tea.Quit
		}
		return m, m.fetch()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Focus):
			if m.cursor < len(m.entries) {
				m.focused = m.entries[m.cursor].ID
			}
		case key.Matches(msg, m.keys.Last):
			m.focusLatest()
		case key.Matches(msg, m.keys.Stop):
			if e, ok := m.Focused(); ok {
				return m, m.stop(e.ID)
			}
		}
	}
	return m, nil
}

func (m Model) stop(id int64) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return stoppedMsg{id: id, err: src.Stop(ctx, id)}
	}
}

// setEntries replaces the list, keeping focus when the focused record is
// still open and falling back to the newest record otherwise.
func (m *Model) setEntries(entries []Entry) {
	m.entries = entries
	if m.cursor >= len(entries) {
		m.cursor = max(len(entries)-1, 0)
	}
	first := !m.loaded
	m.loaded = true
	if _, ok := m.Focused(); !ok {
		m.focusLatest()
		return
	}
	if first {
		for i, e := range entries {
			if e.ID == m.focused {
				m.cursor = i
			}
		}
	}
}

// focusLatest focuses the open record with the least elapsed time.
func (m *Model) focusLatest() {
	m.focused = 0
	var latest time.Time
	for i, e := range m.entries {
		if m.focused == 0 || e.TimeIn.After(latest) {
			m.focused, latest, m.cursor = e.ID, e.TimeIn, i
		}
	}
}

// Focused returns the focused entry.
func (m Model) Focused() (Entry, bool) {
	for _, e := range m.entries {
		if e.ID == m.focused {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns the open records being shown.
func (m Model) Entries() []Entry { return m.entries }

var (
	timerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Faint(true)
	cursorStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

func (m Model) View() string {
	now := m.now()
	var b strings.Builder

	if e, ok := m.Focused(); ok {
		bar := lipgloss.NewStyle().Background(lipgloss.Color(e.Color)).Render("  ")
		timer := timerStyle.Foreground(lipgloss.Color(e.Color)).Render(FormatElapsed(now.Sub(e.TimeIn)))
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, bar, timer))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(e.Domain + " - " + e.Category))
		b.WriteString("\n\n")
	} else {
		b.WriteString(labelStyle.Render("No open time records"))
		b.WriteString("\n\n")
	}

	for i, e := range m.entries {
		line := "  " + e.Label(now)
		if i == m.cursor {
			line = cursorStyle.Render("> " + e.Label(now))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • enter focus • m latest • s stop • q quit"))
	return b.String()
}

// FormatElapsed renders HH:MM:SS from one hour up and MM:SS below.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
