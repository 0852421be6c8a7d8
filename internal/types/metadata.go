package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MetaKind identifies the value kind held by a MetaValue. The set is closed
// (string, number, string-list) to keep serialization and diffing tractable;
// nested structures are deliberately not supported.
type MetaKind string

const (
	MetaKindString     MetaKind = "string"
	MetaKindNumber     MetaKind = "number"
	MetaKindStringList MetaKind = "string-list"
)

// Well-known metadata keys. The builder populates use-case, prerequisite,
// pitfall, keyword, and kind entries; success_rate, usage_count, and rating
// arrive either from the catalog or from the external feedback component.
const (
	MetaKeyUseCases      = "use_cases"
	MetaKeyPrerequisites = "prerequisites"
	MetaKeyPitfalls      = "pitfalls"
	MetaKeyKeywords      = "keywords"
	MetaKeyPresets       = "config_presets"
	MetaKeySuccessRate   = "success_rate"
	MetaKeyUsageCount    = "usage_count"
	MetaKeyRating        = "rating"
	MetaKeyKind          = "kind"
	MetaKeyFieldMappings = "field_mappings"
	MetaKeyPatterns      = "patterns"
)

// MetaValue holds one typed metadata value. Serialized forms are the native
// JSON/YAML shapes: "text", 3.14, or ["a", "b"].
type MetaValue struct {
	kind MetaKind
	str  string
	num  float64
	list []string
}

// MetaString wraps a string value.
func MetaString(s string) MetaValue {
	return MetaValue{kind: MetaKindString, str: s}
}

// MetaNumber wraps a numeric value.
func MetaNumber(n float64) MetaValue {
	return MetaValue{kind: MetaKindNumber, num: n}
}

// MetaStringList wraps a list of strings. The slice is copied.
func MetaStringList(items []string) MetaValue {
	cp := make([]string, len(items))
	copy(cp, items)
	return MetaValue{kind: MetaKindStringList, list: cp}
}

// Kind returns the value kind.
func (v MetaValue) Kind() MetaKind {
	return v.kind
}

// AsString returns the string value; ok is false for other kinds.
func (v MetaValue) AsString() (string, bool) {
	return v.str, v.kind == MetaKindString
}

// AsNumber returns the numeric value; ok is false for other kinds.
func (v MetaValue) AsNumber() (float64, bool) {
	return v.num, v.kind == MetaKindNumber
}

// AsStringList returns a copy of the list value; ok is false for other kinds.
func (v MetaValue) AsStringList() ([]string, bool) {
	if v.kind != MetaKindStringList {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Equal reports deep equality of kind and value.
func (v MetaValue) Equal(o MetaValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case MetaKindString:
		return v.str == o.str
	case MetaKindNumber:
		return v.num == o.num
	case MetaKindStringList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON emits the native JSON shape for the kind.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case MetaKindString:
		return json.Marshal(v.str)
	case MetaKindNumber:
		return json.Marshal(v.num)
	case MetaKindStringList:
		if v.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.list)
	}
	return nil, fmt.Errorf("unknown metadata kind: %q", v.kind)
}

// UnmarshalJSON sniffs the value kind from the native JSON shape.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = MetaString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = MetaNumber(n)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = MetaStringList(list)
		return nil
	}
	return fmt.Errorf("metadata value must be a string, number, or string list: %s", string(data))
}

// MarshalYAML emits the native YAML shape for the kind.
func (v MetaValue) MarshalYAML() (any, error) {
	switch v.kind {
	case MetaKindString:
		return v.str, nil
	case MetaKindNumber:
		return v.num, nil
	case MetaKindStringList:
		return v.list, nil
	}
	return nil, fmt.Errorf("unknown metadata kind: %q", v.kind)
}

// UnmarshalYAML sniffs the value kind from the YAML node.
func (v *MetaValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var n float64
		if node.Tag == "!!int" || node.Tag == "!!float" {
			if err := node.Decode(&n); err != nil {
				return err
			}
			*v = MetaNumber(n)
			return nil
		}
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*v = MetaString(s)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("metadata lists may only contain strings: %w", err)
		}
		*v = MetaStringList(list)
		return nil
	}
	return fmt.Errorf("metadata value must be a string, number, or string list (line %d)", node.Line)
}

// Metadata is the typed key-value mapping attached to entities and edges.
type Metadata map[string]MetaValue

// GetString returns the string value at key.
func (m Metadata) GetString(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// GetNumber returns the numeric value at key.
func (m Metadata) GetNumber(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// GetStrings returns the string-list value at key.
func (m Metadata) GetStrings(key string) ([]string, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	return v.AsStringList()
}

// Clone returns a deep copy. A nil map clones to nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	cp := make(Metadata, len(m))
	for k, v := range m {
		if v.kind == MetaKindStringList {
			cp[k] = MetaStringList(v.list)
			continue
		}
		cp[k] = v
	}
	return cp
}

// Equal reports deep equality of two metadata maps.
func (m Metadata) Equal(o Metadata) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Validate rejects empty keys and, for the reserved numeric keys, values
// outside their documented ranges.
func (m Metadata) Validate() error {
	for k, v := range m {
		if k == "" {
			return NewValidationError("metadata key cannot be empty")
		}
		switch k {
		case MetaKeySuccessRate, MetaKeyRating:
			n, ok := v.AsNumber()
			if !ok {
				return NewValidationError("metadata key %q must be a number", k)
			}
			if k == MetaKeySuccessRate && (n < 0 || n > 1) {
				return NewValidationError("success_rate must be within [0,1], got %v", n)
			}
		case MetaKeyUsageCount:
			n, ok := v.AsNumber()
			if !ok {
				return NewValidationError("metadata key %q must be a number", k)
			}
			if n < 0 {
				return NewValidationError("usage_count cannot be negative, got %v", n)
			}
		}
	}
	return nil
}
