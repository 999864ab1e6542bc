package domain

import (
	"fmt"
	"time"
)

// ContentID identifies a content item on the server
type ContentID int

// ContentType distinguishes catalogue content kinds
type ContentType string

const (
	ContentTypeCollection ContentType = "collection"
	ContentTypeEpisode    ContentType = "episode"
	ContentTypeScreencast ContentType = "screencast"
	ContentTypeArticle    ContentType = "article"
)

// Content represents a catalogue item (a course, one of its episodes, a screencast...)
type Content struct {
	ID           ContentID     `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	ContentType  ContentType   `json:"content_type"`
	Duration     time.Duration `json:"duration"`
	ReleasedAt   time.Time     `json:"released_at"`
	Free         bool          `json:"free"`
	Professional bool          `json:"professional"`
	Difficulty   string        `json:"difficulty"`

	// Child-specific fields (zero for top-level content)
	GroupID GroupID `json:"group_id"` // Group this content belongs to
	Ordinal int     `json:"ordinal"`  // Position within the group
}

// IsCollection returns true if the content is expected to have children
func (c Content) IsCollection() bool {
	return c.ContentType == ContentTypeCollection
}

// FormattedDuration returns the duration in a human-readable format
func (c Content) FormattedDuration() string {
	h := int(c.Duration.Hours())
	mins := int(c.Duration.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// GroupID identifies a group of child contents
type GroupID int

// Group is an ordered section of a collection (e.g. a course chapter)
type Group struct {
	ID          GroupID   `json:"id"`
	ContentID   ContentID `json:"content_id"` // Owning collection
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Ordinal     int       `json:"ordinal"`
}

// ChildContentsState is a snapshot of a parent's children, ordered for display.
type ChildContentsState struct {
	Contents []Content
	Groups   []Group
}

// ContentDetails is the full representation of a content item returned by the service.
type ContentDetails struct {
	Content  Content
	Groups   []Group
	Children []Content
}

// CacheUpdate is the set of records a successful fetch merges into the cache.
// Entries are upserted by id.
type CacheUpdate struct {
	Contents []Content
	Groups   []Group
}

// IsEmpty reports whether the update carries no records
func (u CacheUpdate) IsEmpty() bool {
	return len(u.Contents) == 0 && len(u.Groups) == 0
}
