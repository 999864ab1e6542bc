package components

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mmcdole/lectern/internal/domain"
	"github.com/mmcdole/lectern/internal/tui/styles"
)

// Layout constants for inspector
const (
	InspectorBorderHeight     = 2
	InspectorScrollIndicators = 2
)

// inspectorContent holds the three-zone layout content
type inspectorContent struct {
	header string // fixed top
	body   string // scrollable middle
	footer string // fixed bottom
}

// Inspector displays detailed metadata for the selected content
type Inspector struct {
	content    *domain.Content
	group      *domain.Group
	width      int
	height     int
	offset     int // scroll offset
	maxVisible int // max visible lines
}

// NewInspector creates a new inspector component
func NewInspector() Inspector {
	return Inspector{}
}

// SetContent sets the content to display, with the group it belongs to
func (i *Inspector) SetContent(content *domain.Content, group *domain.Group) {
	if content == nil || i.content == nil || content.ID != i.content.ID {
		i.offset = 0
	}
	i.content = content
	i.group = group
}

// SetSize updates the component dimensions
func (i *Inspector) SetSize(width, height int) {
	i.width = width
	i.height = height
	// Reserve space for border, scroll indicators, title and the blank line under it
	i.maxVisible = height - InspectorBorderHeight - InspectorScrollIndicators - 2
	if i.maxVisible < 1 {
		i.maxVisible = 1
	}
}

// HasContent returns true if there is a content to display
func (i Inspector) HasContent() bool {
	return i.content != nil
}

// ScrollBy moves the description window
func (i *Inspector) ScrollBy(delta int) {
	i.offset += delta
	if i.offset < 0 {
		i.offset = 0
	}
}

// View renders the component
func (i Inspector) View() string {
	style := styles.InspectorBorder

	// Border takes 2 chars (1 each side), leave 1 char safety margin
	contentWidth := i.width - 3
	if contentWidth < 10 {
		contentWidth = 10
	}
	content := i.render(contentWidth)

	titleLine := styles.AccentStyle.Render(styles.Truncate("Info", contentWidth))

	headerLines := splitLines(content.header)
	footerLines := splitLines(content.footer)
	bodyLines := splitLines(content.body)

	availableForBody := i.maxVisible - len(headerLines) - len(footerLines)
	if availableForBody < 1 {
		availableForBody = 1
	}

	maxOffset := len(bodyLines) - availableForBody
	if maxOffset < 0 {
		maxOffset = 0
	}
	offset := min(i.offset, maxOffset)
	end := min(offset+availableForBody, len(bodyLines))
	visibleBody := bodyLines[offset:end]

	up := " "
	if offset > 0 {
		up = styles.DimStyle.Render("↑ more")
	}
	down := " "
	if end < len(bodyLines) {
		down = styles.DimStyle.Render("↓ more")
	}

	parts := []string{titleLine, ""}
	if content.header != "" {
		parts = append(parts, content.header)
	}
	parts = append(parts, up)
	parts = append(parts, visibleBody...)
	for j := len(visibleBody); j < availableForBody; j++ {
		parts = append(parts, "")
	}
	parts = append(parts, down)
	if content.footer != "" {
		parts = append(parts, content.footer)
	}

	// Subtract frame (border) size so total rendered size equals i.width x i.height
	frameW, frameH := style.GetFrameSize()
	return style.
		Width(max(i.width-frameW, 0)).
		Height(max(i.height-frameH, 0)).
		Render(strings.Join(parts, "\n"))
}

func (i Inspector) render(width int) inspectorContent {
	if i.content == nil {
		return inspectorContent{body: styles.DimStyle.Render("Nothing selected")}
	}
	c := *i.content

	var header strings.Builder
	header.WriteString(styles.TitleStyle.Render(styles.Truncate(c.Name, width)))
	header.WriteString("\n")
	if i.group != nil && i.group.Name != "" {
		header.WriteString(styles.SubtitleStyle.Render(styles.Truncate(i.group.Name, width)))
		header.WriteString("\n")
	}

	// Meta line: Type · Duration · Difficulty
	meta := []string{string(c.ContentType), c.FormattedDuration()}
	if c.Difficulty != "" {
		meta = append(meta, c.Difficulty)
	}
	header.WriteString(styles.DimStyle.Render(strings.Join(meta, " · ")))
	header.WriteString("\n")

	switch {
	case c.Free:
		header.WriteString(styles.FreeBadge)
	case c.Professional:
		header.WriteString(styles.ProBadge)
	}

	body := ""
	if c.Description != "" {
		body = styles.SubtitleStyle.Render(wordWrap(c.Description, min(width-2, 80)))
	}

	footer := ""
	if !c.ReleasedAt.IsZero() {
		footer = styles.DimStyle.Render(strings.Repeat("─", width)) + "\n" +
			styles.DimStyle.Render(fmt.Sprintf("Released %s (%s)", c.ReleasedAt.Format("Jan 2, 2006"), humanize.Time(c.ReleasedAt)))
	}

	return inspectorContent{
		header: strings.TrimRight(header.String(), "\n"),
		body:   body,
		footer: footer,
	}
}

// splitLines splits a string into lines, returning empty slice for empty string
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// wordWrap wraps text to the specified width
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wordLen := len(word)
		if lineLen+wordLen+1 > width && lineLen > 0 {
			result.WriteString("\n")
			lineLen = 0
		}
		if i > 0 && lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}
		result.WriteString(word)
		lineLen += wordLen
	}
	return result.String()
}
