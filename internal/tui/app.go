package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/lectern/internal/dispatch"
	"github.com/mmcdole/lectern/internal/domain"
	"github.com/mmcdole/lectern/internal/search"
	"github.com/mmcdole/lectern/internal/tui/components"
	"github.com/mmcdole/lectern/internal/viewmodel"
)

// row is one rendered line: a group header or a content
type row struct {
	group   *domain.Group
	content *domain.Content
	matched []int
}

// Model renders one child-contents view model.
// The view model lives on the program's Update goroutine: everything it
// dispatches is queued and drained from Update.
type Model struct {
	vm         *viewmodel.ChildContents
	queue      *dispatch.Queue
	title      string
	showGroups bool
	keys       KeyMap

	spinner     spinner.Model
	filterInput textinput.Model
	filtering   bool

	inspector     components.Inspector
	showInspector bool

	snapshot viewmodel.Snapshot
	rows     []row
	cursor   int
	width    int
	height   int
}

// NewModel creates the browser model. vm must dispatch onto queue.
func NewModel(vm *viewmodel.ChildContents, queue *dispatch.Queue, title string, showGroups bool) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "

	return Model{
		vm:          vm,
		queue:       queue,
		title:       title,
		showGroups:  showGroups,
		keys:        DefaultKeyMap(),
		spinner:     s,
		filterInput: ti,
		inspector:   components.NewInspector(),
		snapshot:    vm.Snapshot(),
	}
}

// Bind routes queue wake-ups to p. Send runs on its own goroutine because
// the view model may dispatch from inside Update.
func Bind(p *tea.Program, queue *dispatch.Queue) {
	queue.SetNotify(func() {
		go p.Send(drainMsg{})
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return startMsg{} },
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case startMsg:
		m.vm.Start()
		m.queue.Drain()
		m.syncSnapshot()
		return m, nil

	case drainMsg:
		m.queue.Drain()
		m.syncSnapshot()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.Type {
		case tea.KeyEsc:
			m.filtering = false
			m.filterInput.Reset()
			m.filterInput.Blur()
			m.rebuildRows()
			return m, nil
		case tea.KeyEnter:
			m.filtering = false
			m.filterInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.rebuildRows()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Home):
		m.cursor = 0
		m.moveCursor(0)
	case key.Matches(msg, m.keys.End):
		m.cursor = len(m.rows) - 1
		m.moveCursor(0)
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filterInput.Focus()
	case key.Matches(msg, m.keys.Inspector):
		m.showInspector = !m.showInspector
		m.updateLayout()
	case key.Matches(msg, m.keys.ScrollDown):
		m.inspector.ScrollBy(1)
	case key.Matches(msg, m.keys.ScrollUp):
		m.inspector.ScrollBy(-1)
	case key.Matches(msg, m.keys.Escape):
		m.filterInput.Reset()
		m.rebuildRows()
	case key.Matches(msg, m.keys.Reload):
		m.vm.Reload()
		m.queue.Drain()
		m.syncSnapshot()
	case key.Matches(msg, m.keys.Refresh):
		m.vm.Refresh()
		m.queue.Drain()
		m.syncSnapshot()
	}
	return m, nil
}

// syncSnapshot copies view model state into the model
func (m *Model) syncSnapshot() {
	m.snapshot = m.vm.Snapshot()
	m.rebuildRows()
}

func (m *Model) rebuildRows() {
	m.rows = nil
	query := m.filterInput.Value()

	if query != "" {
		for _, match := range search.FilterContents(query, m.snapshot.Contents) {
			c := match.Content
			m.rows = append(m.rows, row{content: &c, matched: match.MatchedIndexes})
		}
	} else {
		var current domain.GroupID
		for i := range m.snapshot.Contents {
			c := m.snapshot.Contents[i]
			if m.showGroups && c.GroupID != current {
				current = c.GroupID
				if g := m.groupByID(current); g != nil {
					m.rows = append(m.rows, row{group: g})
				}
			}
			m.rows = append(m.rows, row{content: &c})
		}
	}

	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	m.moveCursor(0)
}

func (m *Model) groupByID(id domain.GroupID) *domain.Group {
	for i := range m.snapshot.Groups {
		if m.snapshot.Groups[i].ID == id {
			g := m.snapshot.Groups[i]
			return &g
		}
	}
	return nil
}

// moveCursor moves by delta, skipping group headers
func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		m.cursor = 0
		m.syncInspector()
		return
	}
	pos := m.cursor + delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(m.rows) {
		pos = len(m.rows) - 1
	}

	step := 1
	if delta < 0 {
		step = -1
	}
	for pos >= 0 && pos < len(m.rows) && m.rows[pos].content == nil {
		pos += step
	}
	if pos < 0 || pos >= len(m.rows) {
		// Ran off the end; search the other way
		pos = m.cursor
		for pos >= 0 && pos < len(m.rows) && m.rows[pos].content == nil {
			pos -= step
		}
		if pos < 0 || pos >= len(m.rows) {
			pos = 0
		}
	}
	m.cursor = pos
	m.syncInspector()
}

// Selected returns the content under the cursor
func (m Model) Selected() (domain.Content, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) || m.rows[m.cursor].content == nil {
		return domain.Content{}, false
	}
	return *m.rows[m.cursor].content, true
}
