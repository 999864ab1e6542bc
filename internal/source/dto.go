package source

import (
	"bytes"
	"encoding/json"
)

// Document is a JSON:API response document
type Document struct {
	Data     Resource   `json:"data"`
	Included []Resource `json:"included,omitempty"`
}

// Resource is a JSON:API resource object
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// ResourceIdentifier references another resource by type and id
type ResourceIdentifier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Relationship holds to-one or to-many linkage.
// Both forms are normalized into Data.
type Relationship struct {
	Data []ResourceIdentifier
}

func (r *Relationship) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(raw.Data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		r.Data = nil
	case trimmed[0] == '[':
		return json.Unmarshal(trimmed, &r.Data)
	default:
		var one ResourceIdentifier
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		r.Data = []ResourceIdentifier{one}
	}
	return nil
}

// ContentAttributes are the attributes of a "contents" resource
type ContentAttributes struct {
	Name                 string `json:"name"`
	DescriptionPlainText string `json:"description_plain_text"`
	ContentType          string `json:"content_type"`
	Duration             int64  `json:"duration"` // Seconds
	ReleasedAt           string `json:"released_at"`
	Free                 bool   `json:"free"`
	Professional         bool   `json:"professional"`
	Difficulty           string `json:"difficulty"`
	Ordinal              int    `json:"ordinal"`
}

// GroupAttributes are the attributes of a "groups" resource
type GroupAttributes struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Ordinal     int    `json:"ordinal"`
}

const (
	typeContents = "contents"
	typeGroups   = "groups"
)
