package s0_entities

import (
	"fmt"
	"strings"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
)

// Config holds registry options
type Config struct {
	// Firmographics is the configured firmographic column list
	Firmographics []string
	// PreferPaying resolves an id present in both sources to the paying row
	// instead of failing with DuplicateEntityError
	PreferPaying bool
}

// Registry unifies paying and non-paying entities
// ⭐ SSOT: S0 엔티티 통합은 여기서만
type Registry struct {
	config Config
	logger *logger.Logger
}

// NewRegistry creates a new entity registry
func NewRegistry(config Config, log *logger.Logger) *Registry {
	return &Registry{
		config: config,
		logger: log.WithComponent(contracts.StageEntities.String()),
	}
}

// Build merges the two disjoint source tables into one entity set.
// The same id in both tables is ambiguous ground truth and fails with
// DuplicateEntityError unless PreferPaying is set.
func (r *Registry) Build(paying, nonPaying []contracts.SourceEntity) (*contracts.EntitySet, error) {
	set := &contracts.EntitySet{
		Entities: make(map[string]*contracts.Entity, len(paying)+len(nonPaying)),
	}

	// 1. Paying entities (conversion date 필수)
	for i := range paying {
		src := &paying[i]
		id := strings.TrimSpace(src.ID)
		if id == "" {
			return nil, fmt.Errorf("paying row %d: empty entity id", i)
		}
		if src.ConversionDate == nil {
			return nil, fmt.Errorf("paying entity %q: missing conversion date", id)
		}
		if _, exists := set.Entities[id]; exists {
			return nil, fmt.Errorf("paying entity %q listed twice", id)
		}
		set.Entities[id] = r.newEntity(id, src, set)
	}

	// 2. Non-paying entities (closed world: never converts)
	overridden := 0
	for i := range nonPaying {
		src := &nonPaying[i]
		id := strings.TrimSpace(src.ID)
		if id == "" {
			return nil, fmt.Errorf("non-paying row %d: empty entity id", i)
		}

		if existing, exists := set.Entities[id]; exists {
			if !existing.Converts() {
				return nil, fmt.Errorf("non-paying entity %q listed twice", id)
			}
			if !r.config.PreferPaying {
				return nil, &contracts.DuplicateEntityError{EntityID: id}
			}
			overridden++
			r.logger.WithEntity(id).Warn("entity in both sources, keeping paying row")
			continue
		}

		entity := r.newEntity(id, src, set)
		entity.ConversionDate = nil
		set.Entities[id] = entity
	}

	r.logger.WithFields(map[string]interface{}{
		"entities":              set.Count(),
		"converting":            set.ConvertingCount(),
		"missing_firmographics": set.MissingFirmographics,
		"overridden":            overridden,
	}).Info("Entity registry built")

	return set, nil
}

// newEntity copies firmographics as-is. Absent or blank columns become the
// missing sentinel; nothing is imputed here.
func (r *Registry) newEntity(id string, src *contracts.SourceEntity, set *contracts.EntitySet) *contracts.Entity {
	entity := &contracts.Entity{
		ID:            id,
		Firmographics: make(map[string]contracts.Attribute, len(r.config.Firmographics)),
		Revenue:       src.Revenue,
	}
	if src.ConversionDate != nil {
		conv := contracts.Day(*src.ConversionDate)
		entity.ConversionDate = &conv
	}

	for _, column := range r.config.Firmographics {
		value, ok := src.Firmographics[column]
		if !ok || strings.TrimSpace(value) == "" {
			entity.Firmographics[column] = contracts.MissingAttribute()
			set.MissingFirmographics++
			r.logger.Debug((&contracts.MissingFirmographic{EntityID: id, Column: column}).Error())
			continue
		}
		entity.Firmographics[column] = contracts.Present(strings.TrimSpace(value))
	}

	return entity
}
