package graph

import (
	"strings"
	"time"

	"github.com/weftlab/weft/internal/types"
)

// Category classifies an entity into one of a closed set of functional
// areas. Categories drive belongs-to-category edge inference and the
// per-category statistics surface.
type Category string

const (
	CategoryMessaging  Category = "messaging"
	CategoryHTTP       Category = "http"
	CategoryData       Category = "data"
	CategoryStorage    Category = "storage"
	CategoryFiles      Category = "files"
	CategoryScheduling Category = "scheduling"
	CategoryAI         Category = "ai"
	CategoryCRM        Category = "crm"
	CategoryAnalytics  Category = "analytics"
	CategoryDevTools   Category = "devtools"
	CategoryGeneral    Category = "general"
)

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the Category is a valid value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMessaging, CategoryHTTP, CategoryData, CategoryStorage,
		CategoryFiles, CategoryScheduling, CategoryAI, CategoryCRM,
		CategoryAnalytics, CategoryDevTools, CategoryGeneral:
		return true
	default:
		return false
	}
}

// AllCategories returns every valid category, in display order.
func AllCategories() []Category {
	return []Category{
		CategoryMessaging, CategoryHTTP, CategoryData, CategoryStorage,
		CategoryFiles, CategoryScheduling, CategoryAI, CategoryCRM,
		CategoryAnalytics, CategoryDevTools, CategoryGeneral,
	}
}

// ParseCategory maps a string onto the closed category set. Unknown or
// empty values fall back to CategoryGeneral.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.IsValid() {
		return c
	}
	return CategoryGeneral
}

// RelationType represents the type of relationship between entities.
type RelationType string

const (
	RelationCompatibleWith    RelationType = "compatible-with"
	RelationBelongsToCategory RelationType = "belongs-to-category"
	RelationUsedInPattern     RelationType = "used-in-pattern"
	RelationSolves            RelationType = "solves"
	RelationRequires          RelationType = "requires"
	RelationTriggeredBy       RelationType = "triggered-by"
	RelationSimilarTo         RelationType = "similar-to"
)

// String returns the string representation of RelationType.
func (rt RelationType) String() string {
	return string(rt)
}

// IsValid checks if the RelationType is a valid value.
func (rt RelationType) IsValid() bool {
	switch rt {
	case RelationCompatibleWith, RelationBelongsToCategory, RelationUsedInPattern,
		RelationSolves, RelationRequires, RelationTriggeredBy, RelationSimilarTo:
		return true
	default:
		return false
	}
}

// Symmetric reports whether (A,B) and (B,A) name the same logical edge
// for this type. Directed types (solves, requires, triggered-by) keep
// their orientation.
func (rt RelationType) Symmetric() bool {
	switch rt {
	case RelationCompatibleWith, RelationBelongsToCategory,
		RelationUsedInPattern, RelationSimilarTo:
		return true
	default:
		return false
	}
}

// AllRelationTypes returns every valid relation type.
func AllRelationTypes() []RelationType {
	return []RelationType{
		RelationCompatibleWith, RelationBelongsToCategory, RelationUsedInPattern,
		RelationSolves, RelationRequires, RelationTriggeredBy, RelationSimilarTo,
	}
}

// Entity represents one catalog component in the knowledge graph: a
// trigger, action, or transform. The ID is the stable catalog identifier
// and never changes across rebuilds.
type Entity struct {
	ID          types.ID       `json:"id"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Category    Category       `json:"category"`
	Metadata    types.Metadata `json:"metadata,omitempty"`
	Embedding   []float64      `json:"embedding,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewEntity creates an Entity with the given id and label, categorized
// as general until told otherwise.
func NewEntity(id types.ID, label string) *Entity {
	now := time.Now().UTC()
	return &Entity{
		ID:        id,
		Label:     label,
		Category:  CategoryGeneral,
		Metadata:  types.Metadata{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithDescription sets the description.
// Returns the entity for method chaining.
func (e *Entity) WithDescription(desc string) *Entity {
	e.Description = desc
	e.UpdatedAt = time.Now().UTC()
	return e
}

// WithCategory sets the category.
// Returns the entity for method chaining.
func (e *Entity) WithCategory(c Category) *Entity {
	e.Category = c
	e.UpdatedAt = time.Now().UTC()
	return e
}

// WithMetadata sets one metadata entry.
// Returns the entity for method chaining.
func (e *Entity) WithMetadata(key string, value types.MetaValue) *Entity {
	if e.Metadata == nil {
		e.Metadata = types.Metadata{}
	}
	e.Metadata[key] = value
	e.UpdatedAt = time.Now().UTC()
	return e
}

// WithEmbedding sets the embedding vector.
// Returns the entity for method chaining.
func (e *Entity) WithEmbedding(vec []float64) *Entity {
	e.Embedding = vec
	e.UpdatedAt = time.Now().UTC()
	return e
}

// HasEmbedding reports whether the entity carries a vector.
func (e *Entity) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// Validate validates the Entity fields.
func (e *Entity) Validate() error {
	if err := e.ID.Validate(); err != nil {
		return types.NewValidationError("invalid entity id: %v", err)
	}
	if strings.TrimSpace(e.Label) == "" {
		return types.NewValidationError("entity %s has no label", e.ID)
	}
	if !e.Category.IsValid() {
		return types.NewValidationError("entity %s has unknown category %q", e.ID, e.Category)
	}
	if err := e.Metadata.Validate(); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy safe to mutate without disturbing shared
// snapshot state.
func (e *Entity) Clone() *Entity {
	cp := *e
	cp.Metadata = e.Metadata.Clone()
	if e.Embedding != nil {
		cp.Embedding = make([]float64, len(e.Embedding))
		copy(cp.Embedding, e.Embedding)
	}
	return &cp
}

// Edge represents a typed, weighted relationship between two entities.
// Strength lives in [0,1]; Reasoning is display-only free text and never
// parsed; Hints carries structured extras such as field-mapping examples.
type Edge struct {
	Source    types.ID       `json:"source"`
	Target    types.ID       `json:"target"`
	Type      RelationType   `json:"type"`
	Strength  float64        `json:"strength"`
	Reasoning string         `json:"reasoning,omitempty"`
	Hints     types.Metadata `json:"hints,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEdge creates an Edge between two entities with strength 1.0.
func NewEdge(source, target types.ID, relType RelationType) *Edge {
	return &Edge{
		Source:    source,
		Target:    target,
		Type:      relType,
		Strength:  1.0,
		CreatedAt: time.Now().UTC(),
	}
}

// WithStrength sets the strength.
// Returns the edge for method chaining.
func (e *Edge) WithStrength(s float64) *Edge {
	e.Strength = s
	return e
}

// WithReasoning sets the human-readable explanation.
// Returns the edge for method chaining.
func (e *Edge) WithReasoning(r string) *Edge {
	e.Reasoning = r
	return e
}

// WithHint sets one structured hint.
// Returns the edge for method chaining.
func (e *Edge) WithHint(key string, value types.MetaValue) *Edge {
	if e.Hints == nil {
		e.Hints = types.Metadata{}
	}
	e.Hints[key] = value
	return e
}

// Validate validates the Edge fields.
func (e *Edge) Validate() error {
	if err := e.Source.Validate(); err != nil {
		return types.NewValidationError("invalid edge source: %v", err)
	}
	if err := e.Target.Validate(); err != nil {
		return types.NewValidationError("invalid edge target: %v", err)
	}
	if !e.Type.IsValid() {
		return types.NewValidationError("unknown relation type %q", e.Type)
	}
	if e.Strength < 0.0 || e.Strength > 1.0 {
		return types.NewValidationError(
			"edge strength must be within [0,1], got %f", e.Strength)
	}
	if err := e.Hints.Validate(); err != nil {
		return err
	}
	return nil
}

// keySep separates logical-key components. IDs reject control
// characters, so the separator cannot collide with id content.
const keySep = "\x1f"

// LogicalKey returns the canonical identity of the edge: for symmetric
// types the unordered endpoint pair plus type, for directed types the
// ordered pair plus type. Writing an edge with an existing logical key
// overwrites it.
func (e *Edge) LogicalKey() string {
	a, b := string(e.Source), string(e.Target)
	if e.Type.Symmetric() && a > b {
		a, b = b, a
	}
	return a + keySep + b + keySep + string(e.Type)
}

// Touches reports whether the edge is incident to id in either role.
func (e *Edge) Touches(id types.ID) bool {
	return e.Source == id || e.Target == id
}

// Other returns the opposite endpoint from id. For self-loops it
// returns id itself.
func (e *Edge) Other(id types.ID) types.ID {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	cp := *e
	cp.Hints = e.Hints.Clone()
	return &cp
}
