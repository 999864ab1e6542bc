package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mmcdole/lectern/internal/domain"
)

// MapContentDetails converts a contents document into domain details and the
// cache update that records them.
func MapContentDetails(doc Document) (domain.ContentDetails, domain.CacheUpdate, error) {
	if doc.Data.Type != typeContents {
		return domain.ContentDetails{}, domain.CacheUpdate{}, fmt.Errorf("unexpected resource type %q", doc.Data.Type)
	}

	parent, err := mapContent(doc.Data)
	if err != nil {
		return domain.ContentDetails{}, domain.CacheUpdate{}, err
	}

	included := make(map[string]Resource, len(doc.Included))
	for _, r := range doc.Included {
		included[r.Type+":"+r.ID] = r
	}

	details := domain.ContentDetails{Content: parent}
	groupByContent := make(map[string]domain.GroupID)

	for _, ref := range doc.Data.Relationships["groups"].Data {
		r, ok := included[typeGroups+":"+ref.ID]
		if !ok {
			continue
		}
		group, err := mapGroup(r, parent.ID)
		if err != nil {
			return domain.ContentDetails{}, domain.CacheUpdate{}, err
		}
		details.Groups = append(details.Groups, group)
		for _, child := range r.Relationships["contents"].Data {
			groupByContent[child.ID] = group.ID
		}
	}

	for _, r := range doc.Included {
		if r.Type != typeContents {
			continue
		}
		groupID, ok := groupByContent[r.ID]
		if !ok {
			// Contents can also point at their group directly
			if rel := r.Relationships["group"].Data; len(rel) == 1 {
				if id, err := strconv.Atoi(rel[0].ID); err == nil && hasGroup(details.Groups, domain.GroupID(id)) {
					groupID, ok = domain.GroupID(id), true
				}
			}
		}
		if !ok {
			continue
		}
		child, err := mapContent(r)
		if err != nil {
			return domain.ContentDetails{}, domain.CacheUpdate{}, err
		}
		child.GroupID = groupID
		details.Children = append(details.Children, child)
	}

	update := domain.CacheUpdate{
		Contents: append([]domain.Content{parent}, details.Children...),
		Groups:   details.Groups,
	}
	return details, update, nil
}

func hasGroup(groups []domain.Group, id domain.GroupID) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

func mapContent(r Resource) (domain.Content, error) {
	id, err := strconv.Atoi(r.ID)
	if err != nil {
		return domain.Content{}, fmt.Errorf("invalid content id %q: %w", r.ID, err)
	}

	var attrs ContentAttributes
	if len(r.Attributes) > 0 {
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return domain.Content{}, fmt.Errorf("failed to parse content %s: %w", r.ID, err)
		}
	}

	return domain.Content{
		ID:           domain.ContentID(id),
		Name:         attrs.Name,
		Description:  attrs.DescriptionPlainText,
		ContentType:  domain.ContentType(attrs.ContentType),
		Duration:     time.Duration(attrs.Duration) * time.Second,
		ReleasedAt:   parseTime(attrs.ReleasedAt),
		Free:         attrs.Free,
		Professional: attrs.Professional,
		Difficulty:   attrs.Difficulty,
		Ordinal:      attrs.Ordinal,
	}, nil
}

func mapGroup(r Resource, parentID domain.ContentID) (domain.Group, error) {
	id, err := strconv.Atoi(r.ID)
	if err != nil {
		return domain.Group{}, fmt.Errorf("invalid group id %q: %w", r.ID, err)
	}

	var attrs GroupAttributes
	if len(r.Attributes) > 0 {
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return domain.Group{}, fmt.Errorf("failed to parse group %s: %w", r.ID, err)
		}
	}

	return domain.Group{
		ID:          domain.GroupID(id),
		ContentID:   parentID,
		Name:        attrs.Name,
		Description: attrs.Description,
		Ordinal:     attrs.Ordinal,
	}, nil
}

// parseTime parses an RFC 3339 timestamp, returning the zero time on failure
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
