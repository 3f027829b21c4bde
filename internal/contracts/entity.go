package contracts

import (
	"sort"
	"time"
)

// Attribute is a firmographic value that may be missing.
// Missing values are kept as-is through the pipeline, never imputed.
type Attribute struct {
	Value   string `json:"value"`
	Missing bool   `json:"missing"`
}

// Present creates a non-missing attribute
func Present(v string) Attribute {
	return Attribute{Value: v}
}

// MissingAttribute is the sentinel for an absent firmographic value
func MissingAttribute() Attribute {
	return Attribute{Missing: true}
}

// Entity is one company/portal
// ⭐ SSOT: S0 → S1..S5 엔티티 정의
type Entity struct {
	ID string `json:"id"`

	// Firmographics is keyed by configured column name
	Firmographics map[string]Attribute `json:"firmographics"`

	// ConversionDate is nil for entities that never convert
	ConversionDate *time.Time `json:"conversion_date,omitempty"`

	// Revenue is carried for reporting only; it is never emitted as a feature
	Revenue *float64 `json:"revenue,omitempty"`
}

// Converts reports whether the entity ever converts
func (e *Entity) Converts() bool {
	return e.ConversionDate != nil
}

// Firmographic returns the configured attribute, or the missing sentinel
func (e *Entity) Firmographic(column string) Attribute {
	attr, ok := e.Firmographics[column]
	if !ok {
		return MissingAttribute()
	}
	return attr
}

// EntitySet is the unified paying + non-paying registry
type EntitySet struct {
	Entities map[string]*Entity `json:"entities"`

	// MissingFirmographics counts configured columns absent per entity
	MissingFirmographics int `json:"missing_firmographics"`
}

// Get returns the entity by id
func (s *EntitySet) Get(id string) (*Entity, bool) {
	e, ok := s.Entities[id]
	return e, ok
}

// Count returns the number of entities
func (s *EntitySet) Count() int {
	return len(s.Entities)
}

// IDs returns all entity ids in sorted order
func (s *EntitySet) IDs() []string {
	ids := make([]string, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConvertingCount returns the number of entities with a conversion date
func (s *EntitySet) ConvertingCount() int {
	n := 0
	for _, e := range s.Entities {
		if e.Converts() {
			n++
		}
	}
	return n
}
