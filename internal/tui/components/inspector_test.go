package components

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mmcdole/lectern/internal/domain"
)

func TestWordWrap(t *testing.T) {
	assert.Equal(t, "one two\nthree", wordWrap("one two three", 8))
	assert.Equal(t, "as is", wordWrap("as is", 0))
}

func TestInspectorRendersContent(t *testing.T) {
	i := NewInspector()
	i.SetSize(50, 20)
	assert.Contains(t, i.View(), "Nothing selected")

	c := domain.Content{
		ID:          3,
		Name:        "Worker Pools",
		ContentType: domain.ContentTypeEpisode,
		Duration:    7 * time.Minute,
		Difficulty:  "advanced",
		Free:        true,
		ReleasedAt:  time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	i.SetContent(&c, &domain.Group{ID: 1, Name: "Patterns"})

	view := i.View()
	assert.True(t, i.HasContent())
	assert.Contains(t, view, "Worker Pools")
	assert.Contains(t, view, "Patterns")
	assert.Contains(t, view, "episode · 7m · advanced")
	assert.Contains(t, view, "Released May 1, 2020")
}

func TestInspectorScrollsLongDescriptions(t *testing.T) {
	i := NewInspector()
	i.SetSize(40, 14)
	c := domain.Content{ID: 1, Name: "Long", Description: strings.Repeat("word ", 200)}
	i.SetContent(&c, nil)

	assert.Contains(t, i.View(), "↓ more")
	assert.NotContains(t, i.View(), "↑ more")

	i.ScrollBy(3)
	assert.Contains(t, i.View(), "↑ more")

	// Selecting another content resets the scroll position
	other := domain.Content{ID: 2, Name: "Other", Description: c.Description}
	i.SetContent(&other, nil)
	assert.NotContains(t, i.View(), "↑ more")
}
