package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/lectern/internal/domain"
	"github.com/mmcdole/lectern/internal/tui/styles"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n")

	var main string
	switch m.snapshot.State {
	case domain.LoadStateInitial, domain.LoadStateLoading:
		main = m.renderLoading()
	case domain.LoadStateFailed:
		main = styles.ErrorStyle.Render("Unable to load contents.") + "\n" +
			styles.DimStyle.Render("Press r to retry, R to refresh from the server.")
	case domain.LoadStateHasData:
		main = m.renderList()
	}

	layout := m.calculateColumnLayout(m.width - 4)
	if layout.inspectorWidth > 0 {
		list := lipgloss.NewStyle().Width(layout.listWidth).Render(main)
		main = lipgloss.JoinHorizontal(lipgloss.Top, list, m.inspector.View())
	}
	b.WriteString(main)

	b.WriteString("\n\n")
	if m.filtering || m.filterInput.Value() != "" {
		b.WriteString(m.filterInput.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())

	return styles.BrowserStyle.Render(b.String())
}

func (m Model) renderLoading() string {
	line := m.spinner.View() + " Loading..."
	// Keep showing what we had while a reload runs
	if len(m.snapshot.Contents) > 0 {
		return styles.DimStyle.Render(line) + "\n" + m.renderList()
	}
	return styles.DimStyle.Render(line)
}

func (m Model) renderList() string {
	if len(m.rows) == 0 {
		if m.filterInput.Value() != "" {
			return styles.DimStyle.Render("No matches")
		}
		return styles.DimStyle.Render("No contents")
	}

	start, end := m.visibleRange()
	var lines []string
	for i := start; i < end; i++ {
		r := m.rows[i]
		if r.group != nil {
			lines = append(lines, styles.GroupHeaderStyle.Render(r.group.Name))
			continue
		}
		lines = append(lines, renderContent(*r.content, r.matched, i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

// visibleRange keeps the cursor on screen
func (m Model) visibleRange() (int, int) {
	// title, blank, filter, help, padding
	height := m.height - 8
	if height <= 0 || height >= len(m.rows) {
		return 0, len(m.rows)
	}
	start := m.cursor - height/2
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > len(m.rows) {
		end = len(m.rows)
		start = end - height
	}
	return start, end
}

func renderContent(c domain.Content, matched []int, selected bool) string {
	name := highlight(c.Name, matched)
	meta := c.FormattedDuration()
	switch {
	case c.Free:
		meta += " " + styles.FreeBadge
	case c.Professional:
		meta += " " + styles.ProBadge
	}

	line := fmt.Sprintf("%2d. %s  %s", c.Ordinal, name, styles.DimStyle.Render(meta))
	if selected {
		return styles.SelectedItemStyle.Render(line)
	}
	return styles.NormalItemStyle.Render(line)
}

// highlight styles the bytes at matched offsets
func highlight(text string, matched []int) string {
	if len(matched) == 0 {
		return text
	}
	set := make(map[int]bool, len(matched))
	for _, i := range matched {
		set[i] = true
	}

	var b strings.Builder
	for i, r := range text {
		if set[i] {
			b.WriteString(styles.MatchStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (m Model) renderHelp() string {
	var parts []string
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
