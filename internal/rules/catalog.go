// Package rules holds the per-category unsafe-event thresholds.
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Location categories known to the default catalog.
const (
	Highway     = "highway"
	CityCenter  = "cityCenter"
	Commercial  = "commercial"
	Residential = "residential"
)

// DefaultThresholds is the catalog used when none is configured.
func DefaultThresholds() map[string]int {
	return map[string]int{
		Highway:     4,
		CityCenter:  3,
		Commercial:  2,
		Residential: 1,
	}
}

// Catalog maps a location category to the minimum number of unsafe events
// in one window that raises an alert. It is immutable after construction.
type Catalog struct {
	thresholds map[string]int
	categories []string
}

// NewCatalog validates thresholds and returns a catalog over a copy of them.
func NewCatalog(thresholds map[string]int) (*Catalog, error) {
	c := &Catalog{
		thresholds: make(map[string]int, len(thresholds)),
		categories: make([]string, 0, len(thresholds)),
	}
	for category, threshold := range thresholds {
		if strings.TrimSpace(category) == "" {
			return nil, fmt.Errorf("rule category must not be empty")
		}
		if threshold <= 0 {
			return nil, fmt.Errorf("rule %q: threshold must be positive, got %d", category, threshold)
		}
		c.thresholds[category] = threshold
		c.categories = append(c.categories, category)
	}
	sort.Strings(c.categories)
	return c, nil
}

// ThresholdFor returns the threshold for category, or false if no rule exists.
func (c *Catalog) ThresholdFor(category string) (int, bool) {
	t, ok := c.thresholds[category]
	return t, ok
}

// Categories returns the configured categories in lexicographic order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.categories) }

// ParseThresholds parses "category:count,category:count".
func ParseThresholds(raw string) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf(`rules must be "category:count,category:count", got %q`, p)
		}
		category := strings.TrimSpace(parts[0])
		count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || category == "" {
			return nil, fmt.Errorf(`rules must be "category:count,category:count", got %q`, p)
		}
		out[category] = count
	}
	return out, nil
}
