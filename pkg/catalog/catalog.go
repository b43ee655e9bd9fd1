// Package catalog resolves free-text item mentions against the configured product catalog.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"halobot/pkg/config"
)

// ErrItemNotFound indicates no catalog item matched the query.
var ErrItemNotFound = errors.New("catalog item not found")

// ErrItemUnavailable indicates the item exists but is marked unavailable.
var ErrItemUnavailable = errors.New("catalog item unavailable")

// Match is a resolved catalog item with its fuzzy match score.
type Match struct {
	Item  config.CatalogItem
	Score int
}

// Catalog wraps the configured item list with fuzzy lookup.
type Catalog struct {
	items []config.CatalogItem
}

// New creates a catalog over the given items.
func New(items []config.CatalogItem) *Catalog {
	return &Catalog{items: items}
}

// FromConfig builds a catalog from the current business configuration.
func FromConfig() (*Catalog, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load config for catalog: %w", err)
	}
	return New(cfg.Business.Catalog), nil
}

// itemSource wraps items for fuzzy matching.
type itemSource struct {
	items []config.CatalogItem
}

func (s itemSource) String(i int) string {
	return strings.ToLower(s.items[i].Name)
}

func (s itemSource) Len() int {
	return len(s.items)
}

// Resolve finds the best catalog item for a free-text mention.
// Exact (case-insensitive) name matches win outright; otherwise the highest
// fuzzy score is taken. Unavailable items resolve to ErrItemUnavailable so
// callers can offer alternatives instead of silently dropping the mention.
func (c *Catalog) Resolve(query string) (*config.CatalogItem, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(c.items) == 0 {
		return nil, ErrItemNotFound
	}

	for i := range c.items {
		if strings.EqualFold(c.items[i].Name, query) {
			return c.checkAvailability(&c.items[i])
		}
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), itemSource{items: c.items})
	if len(matches) == 0 {
		return nil, ErrItemNotFound
	}

	return c.checkAvailability(&c.items[matches[0].Index])
}

// Search returns all fuzzy matches for a query, best first.
func (c *Catalog) Search(query string) []Match {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" || len(c.items) == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, itemSource{items: c.items})
	results := make([]Match, len(matches))
	for i, match := range matches {
		results[i] = Match{
			Item:  c.items[match.Index],
			Score: match.Score,
		}
	}
	return results
}

// FindMention scans a whole message for the best catalog item mention.
// Tries the full text first, then individual word windows, so "I want one
// chocolate cake please" still resolves to "Chocolate Cake".
func (c *Catalog) FindMention(text string) (*config.CatalogItem, error) {
	if item, err := c.Resolve(text); err == nil {
		return item, nil
	} else if errors.Is(err, ErrItemUnavailable) {
		return nil, err
	}

	// Word windows of decreasing length, longest match preferred
	words := strings.Fields(strings.ToLower(text))
	for window := 3; window >= 1; window-- {
		for i := 0; i+window <= len(words); i++ {
			candidate := strings.Join(words[i:i+window], " ")
			for j := range c.items {
				if strings.Contains(strings.ToLower(c.items[j].Name), candidate) && len(candidate) >= 4 {
					return c.checkAvailability(&c.items[j])
				}
			}
		}
	}

	return nil, ErrItemNotFound
}

// Available returns all items currently marked available.
func (c *Catalog) Available() []config.CatalogItem {
	var out []config.CatalogItem
	for _, item := range c.items {
		if item.Available {
			out = append(out, item)
		}
	}
	return out
}

// ListText renders the available items as a numbered menu for chat replies.
func (c *Catalog) ListText(currencySign string) string {
	available := c.Available()
	if len(available) == 0 {
		return "Sorry, nothing is available right now."
	}

	var b strings.Builder
	for i, item := range available {
		fmt.Fprintf(&b, "%d. %s - %s%.0f\n", i+1, item.Name, currencySign, item.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Catalog) checkAvailability(item *config.CatalogItem) (*config.CatalogItem, error) {
	if !item.Available {
		return item, fmt.Errorf("%s: %w", item.Name, ErrItemUnavailable)
	}
	return item, nil
}
