package search

import (
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/lectern/internal/domain"
	"github.com/sahilm/fuzzy"
)

// Match is a content that matched a filter query
type Match struct {
	Content        domain.Content
	Index          int   // Index in the filtered slice
	MatchedIndexes []int // Character positions that matched (for highlighting)
	Score          int   // Higher is better
}

// contentIndex implements sahilm/fuzzy.Source over lowercase names
type contentIndex struct {
	contents    []domain.Content
	lowerTitles []string
}

func newContentIndex(contents []domain.Content) *contentIndex {
	idx := &contentIndex{contents: contents, lowerTitles: make([]string, len(contents))}
	for i, c := range contents {
		idx.lowerTitles[i] = strings.ToLower(c.Name)
	}
	return idx
}

func (idx *contentIndex) String(i int) string { return idx.lowerTitles[i] }
func (idx *contentIndex) Len() int            { return len(idx.contents) }

// FilterContents returns the contents whose names fuzzy-match query, best
// first. An empty query matches everything in the original order.
func FilterContents(query string, contents []domain.Content) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		matches := make([]Match, len(contents))
		for i, c := range contents {
			matches[i] = Match{Content: c, Index: i}
		}
		return matches
	}

	idx := newContentIndex(contents)
	found := fuzzy.FindFrom(strings.ToLower(query), idx)
	if len(found) > 0 {
		matches := make([]Match, len(found))
		for i, m := range found {
			matches[i] = Match{
				Content:        contents[m.Index],
				Index:          m.Index,
				MatchedIndexes: m.MatchedIndexes,
				Score:          m.Score,
			}
		}
		return matches
	}

	// Nothing matched byte-wise; retry ignoring case and diacritics
	return rankNormalized(query, contents)
}

// rankNormalized uses unicode-normalized matching ("cafe" finds "Café").
// Match positions are not available in this mode.
func rankNormalized(query string, contents []domain.Content) []Match {
	titles := make([]string, len(contents))
	for i, c := range contents {
		titles[i] = c.Name
	}

	ranks := lfuzzy.RankFindNormalizedFold(query, titles)
	sort.Sort(ranks)

	matches := make([]Match, len(ranks))
	for i, r := range ranks {
		matches[i] = Match{
			Content: contents[r.OriginalIndex],
			Index:   r.OriginalIndex,
			Score:   -r.Distance,
		}
	}
	return matches
}
