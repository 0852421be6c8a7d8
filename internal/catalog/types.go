package catalog

import (
	"fmt"

	"github.com/weftlab/weft/internal/types"
)

// Record kinds. A record may declare what role it plays inside a flow;
// pattern inference uses the trigger kind to derive triggered-by edges.
const (
	KindTrigger   = "trigger"
	KindAction    = "action"
	KindTransform = "transform"
)

// Record is one catalog entry describing an automation building block:
// a connector, trigger, or transform that flows are assembled from.
type Record struct {
	// ID is the stable identifier entities keep across rebuilds.
	ID types.ID `yaml:"id" json:"id"`

	// Label is the human-readable name.
	Label string `yaml:"label" json:"label"`

	// Description is free text; doc enrichment may extend it.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Category is optional; when absent or unknown the builder assigns
	// one by keyword rules.
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// Kind is trigger, action, or transform. Optional.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Patterns lists ids of patterns this record takes part in, as an
	// alternative to declaring membership on the pattern itself.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Requires and Solves declare directed relationship hints toward
	// other records by id.
	Requires []types.ID `yaml:"requires,omitempty" json:"requires,omitempty"`
	Solves   []types.ID `yaml:"solves,omitempty" json:"solves,omitempty"`

	// Doc optionally names an HTML/PDF/text file or URL whose extracted
	// text augments the description before embedding.
	Doc string `yaml:"doc,omitempty" json:"doc,omitempty"`

	// Metadata carries typed values such as success_rate and keywords.
	Metadata types.Metadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Validate checks the fields a record must have to become an entity.
func (r *Record) Validate() error {
	if r.ID.IsZero() {
		return types.NewValidationError("record has no id (label %q)", r.Label)
	}
	if err := r.ID.Validate(); err != nil {
		return err
	}
	if r.Label == "" {
		return types.NewValidationError("record %s has no label", r.ID)
	}
	switch r.Kind {
	case "", KindTrigger, KindAction, KindTransform:
	default:
		return types.NewValidationError("record %s has invalid kind %q", r.ID, r.Kind)
	}
	if r.Metadata != nil {
		if err := r.Metadata.Validate(); err != nil {
			return types.NewValidationError("record %s: %v", r.ID, err)
		}
	}
	return nil
}

// Pattern is an ordered group of records that appear together in one
// automation flow. Member order matters: when the first member is a
// trigger, the builder derives triggered-by edges from it.
type Pattern struct {
	ID      string     `yaml:"id" json:"id"`
	Label   string     `yaml:"label,omitempty" json:"label,omitempty"`
	Members []types.ID `yaml:"members,omitempty" json:"members,omitempty"`
}

// Validate checks the pattern can be resolved.
func (p *Pattern) Validate() error {
	if p.ID == "" {
		return types.NewValidationError("pattern has no id (label %q)", p.Label)
	}
	return nil
}

// Catalog is the flat input the graph builder consumes: records plus
// the patterns they co-occur in.
type Catalog struct {
	Records  []Record  `yaml:"records" json:"records"`
	Patterns []Pattern `yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// Merge appends another catalog's records and patterns. Patterns with
// the same id merge their member lists, keeping first-seen order.
func (c *Catalog) Merge(other *Catalog) {
	if other == nil {
		return
	}
	c.Records = append(c.Records, other.Records...)

	byID := make(map[string]int, len(c.Patterns))
	for i, p := range c.Patterns {
		byID[p.ID] = i
	}
	for _, p := range other.Patterns {
		i, ok := byID[p.ID]
		if !ok {
			byID[p.ID] = len(c.Patterns)
			c.Patterns = append(c.Patterns, p)
			continue
		}
		c.Patterns[i].Members = appendMissing(c.Patterns[i].Members, p.Members...)
		if c.Patterns[i].Label == "" {
			c.Patterns[i].Label = p.Label
		}
	}
}

// ResolvePatterns folds record-declared memberships into the declared
// patterns and returns the combined list: declared patterns first in
// declaration order, then patterns that exist only through record
// references, in first-reference order. Member lists are deduplicated
// and keep their declared order, with referencing records appended in
// record order.
func (c *Catalog) ResolvePatterns() []Pattern {
	patterns := make([]Pattern, 0, len(c.Patterns))
	index := make(map[string]int, len(c.Patterns))

	for _, p := range c.Patterns {
		if i, ok := index[p.ID]; ok {
			patterns[i].Members = appendMissing(patterns[i].Members, p.Members...)
			continue
		}
		index[p.ID] = len(patterns)
		patterns = append(patterns, Pattern{
			ID:      p.ID,
			Label:   p.Label,
			Members: appendMissing(nil, p.Members...),
		})
	}

	for _, r := range c.Records {
		for _, pid := range r.Patterns {
			if pid == "" {
				continue
			}
			i, ok := index[pid]
			if !ok {
				index[pid] = len(patterns)
				patterns = append(patterns, Pattern{ID: pid})
				i = index[pid]
			}
			patterns[i].Members = appendMissing(patterns[i].Members, r.ID)
		}
	}

	return patterns
}

// Validate checks catalog-level rules: valid patterns and unique
// record ids. Per-record field validation stays with the builder,
// which skips bad records instead of failing the load.
func (c *Catalog) Validate() error {
	seen := make(map[types.ID]bool, len(c.Records))
	for _, r := range c.Records {
		if r.ID.IsZero() {
			continue
		}
		if seen[r.ID] {
			return types.NewValidationError("duplicate record id %s", r.ID)
		}
		seen[r.ID] = true
	}

	patternIDs := make(map[string]bool, len(c.Patterns))
	for i := range c.Patterns {
		p := &c.Patterns[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if patternIDs[p.ID] {
			return types.NewValidationError("duplicate pattern id %s", p.ID)
		}
		patternIDs[p.ID] = true
	}

	return nil
}

// Len reports how many records the catalog holds.
func (c *Catalog) Len() int {
	return len(c.Records)
}

// String summarizes the catalog for logs.
func (c *Catalog) String() string {
	return fmt.Sprintf("catalog with %d records, %d patterns", len(c.Records), len(c.Patterns))
}

func appendMissing(dst []types.ID, add ...types.ID) []types.ID {
	for _, id := range add {
		if id.IsZero() {
			continue
		}
		found := false
		for _, have := range dst {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, id)
		}
	}
	return dst
}
