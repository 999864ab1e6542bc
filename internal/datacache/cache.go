// Package datacache is the reactive local cache of catalogue data.
//
// Reads are served from in-memory indexes that are warmed from a
// domain.Store at construction. Apply upserts records, persists them and
// re-emits to every observer whose parent was touched by the update.
package datacache

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mmcdole/lectern/internal/domain"
)

// Cache implements domain.Repository.
type Cache struct {
	store  domain.Store
	logger *slog.Logger

	// Serialises writers so the store and the indexes agree
	applyMu sync.Mutex

	mu       sync.RWMutex
	version  uint64 // Bumped by every write to the indexes
	contents map[domain.ContentID]domain.Content
	groups   map[domain.GroupID]domain.Group
	corrupt  map[domain.ContentID]bool // Stored entries that failed to decode

	subMu  sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription
}

// New creates a cache warmed from store.
func New(store domain.Store, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		store:    store,
		logger:   logger,
		contents: make(map[domain.ContentID]domain.Content),
		groups:   make(map[domain.GroupID]domain.Group),
		corrupt:  make(map[domain.ContentID]bool),
		subs:     make(map[uint64]*subscription),
	}

	contents, corrupt, err := store.LoadContents()
	if err != nil {
		return nil, &domain.CacheError{Kind: domain.CacheStorage, Err: fmt.Errorf("load contents: %w", err)}
	}
	groups, err := store.LoadGroups()
	if err != nil {
		return nil, &domain.CacheError{Kind: domain.CacheStorage, Err: fmt.Errorf("load groups: %w", err)}
	}

	for _, content := range contents {
		c.contents[content.ID] = content
	}
	for _, id := range corrupt {
		c.corrupt[id] = true
	}
	for _, g := range groups {
		c.groups[g.ID] = g
	}

	logger.Debug("data cache warmed", "contents", len(contents), "groups", len(groups), "corrupt", len(corrupt))
	return c, nil
}

// Content returns a cached content by id.
func (c *Cache) Content(id domain.ContentID) (domain.Content, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.contents[id]
	return content, ok
}

// ChildContents resolves the current children of parentID.
func (c *Cache) ChildContents(parentID domain.ContentID) (domain.ChildContentsState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.childContentsLocked(parentID)
}

// versionedChildContents is ChildContents plus the index version it was read at.
func (c *Cache) versionedChildContents(parentID domain.ContentID) (domain.ChildContentsState, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, err := c.childContentsLocked(parentID)
	return state, c.version, err
}

func (c *Cache) childContentsLocked(parentID domain.ContentID) (domain.ChildContentsState, error) {
	if c.corrupt[parentID] {
		return domain.ChildContentsState{}, &domain.CacheError{
			Kind:      domain.CacheDecode,
			ContentID: parentID,
			Err:       fmt.Errorf("stored entry is unreadable"),
		}
	}

	parent, ok := c.contents[parentID]
	if !ok {
		return domain.ChildContentsState{}, &domain.CacheError{Kind: domain.CacheMiss, ContentID: parentID}
	}

	var groups []domain.Group
	groupOrder := make(map[domain.GroupID]int)
	for _, g := range c.groups {
		if g.ContentID == parentID {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Ordinal != groups[j].Ordinal {
			return groups[i].Ordinal < groups[j].Ordinal
		}
		return groups[i].ID < groups[j].ID
	})
	for i, g := range groups {
		groupOrder[g.ID] = i
	}

	var children []domain.Content
	for _, content := range c.contents {
		if _, ok := groupOrder[content.GroupID]; ok && content.GroupID != 0 {
			children = append(children, content)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		gi, gj := groupOrder[children[i].GroupID], groupOrder[children[j].GroupID]
		if gi != gj {
			return gi < gj
		}
		if children[i].Ordinal != children[j].Ordinal {
			return children[i].Ordinal < children[j].Ordinal
		}
		return children[i].ID < children[j].ID
	})

	// A collection whose children were never fetched is only a summary
	if parent.IsCollection() && len(children) == 0 {
		return domain.ChildContentsState{}, &domain.CacheError{Kind: domain.CacheMiss, ContentID: parentID}
	}

	return domain.ChildContentsState{Contents: children, Groups: groups}, nil
}

// Apply merges update into the cache, persists it and notifies observers.
func (c *Cache) Apply(update domain.CacheUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	c.applyMu.Lock()
	if err := c.store.SaveUpdate(update); err != nil {
		c.applyMu.Unlock()
		return &domain.CacheError{Kind: domain.CacheStorage, Err: fmt.Errorf("save update: %w", err)}
	}

	c.mu.Lock()
	c.version++
	touched := make(map[domain.ContentID]bool)
	for _, g := range update.Groups {
		if old, ok := c.groups[g.ID]; ok {
			touched[old.ContentID] = true
		}
		c.groups[g.ID] = g
		touched[g.ContentID] = true
	}
	for _, content := range update.Contents {
		if old, ok := c.contents[content.ID]; ok && old.GroupID != 0 {
			if g, ok := c.groups[old.GroupID]; ok {
				touched[g.ContentID] = true
			}
		}
		c.contents[content.ID] = content
		delete(c.corrupt, content.ID)
		touched[content.ID] = true
		if g, ok := c.groups[content.GroupID]; ok && content.GroupID != 0 {
			touched[g.ContentID] = true
		}
	}
	c.mu.Unlock()
	c.applyMu.Unlock()

	c.logger.Debug("applied cache update",
		"contents", len(update.Contents),
		"groups", len(update.Groups),
		"parents", len(touched),
	)

	c.notify(touched)
	return nil
}

// Clear drops every cached record and the persisted copy.
func (c *Cache) Clear() error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	c.version++
	c.contents = make(map[domain.ContentID]domain.Content)
	c.groups = make(map[domain.GroupID]domain.Group)
	c.corrupt = make(map[domain.ContentID]bool)
	c.mu.Unlock()

	if err := c.store.InvalidateAll(); err != nil {
		c.logger.Error("failed to clear stored contents", "error", err)
		return &domain.CacheError{Kind: domain.CacheStorage, Err: fmt.Errorf("invalidate: %w", err)}
	}
	c.logger.Info("cleared data cache")
	return nil
}
