package tui

// Layout constants
const (
	ChromeHeight           = 6  // Padding, title, blank line and help
	MinColumnWidth         = 24 // Narrowest usable list or inspector
	InspectorColumnPercent = 40
)

// columnLayout holds calculated column widths for the View
type columnLayout struct {
	listWidth      int
	inspectorWidth int // 0 if not shown
}

// calculateColumnLayout splits the available width between list and inspector
func (m Model) calculateColumnLayout(availableWidth int) columnLayout {
	if !m.showInspector || availableWidth < 2*MinColumnWidth {
		return columnLayout{listWidth: availableWidth}
	}

	inspector := max(availableWidth*InspectorColumnPercent/100, MinColumnWidth)
	return columnLayout{
		listWidth:      availableWidth - inspector,
		inspectorWidth: inspector,
	}
}

// updateLayout updates component sizes based on window size
func (m *Model) updateLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	// BrowserStyle pads two cells on each side
	layout := m.calculateColumnLayout(m.width - 4)
	if layout.inspectorWidth > 0 {
		m.inspector.SetSize(layout.inspectorWidth, max(m.height-ChromeHeight, 0))
	}
}

// syncInspector points the inspector at the row under the cursor
func (m *Model) syncInspector() {
	selected, ok := m.Selected()
	if !ok {
		m.inspector.SetContent(nil, nil)
		return
	}
	m.inspector.SetContent(&selected, m.groupByID(selected.GroupID))
}
