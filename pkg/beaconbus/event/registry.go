package event

import (
	"fmt"
	"slices"
	"sync"
)

// TagSchema describes the payload expected on a tag.
type TagSchema struct {
	// Tag is the exact tag (e.g., "/salt/minion/minion_beacons_list_complete").
	Tag Tag

	// Description explains the tag's purpose.
	Description string

	// Required lists payload keys that must be present.
	Required []string

	// Validator is an optional custom validation function.
	Validator func(*Envelope) error

	// Deprecated marks the schema as deprecated.
	Deprecated bool
}

// Validate checks if an envelope conforms to this schema.
func (s *TagSchema) Validate(env *Envelope) error {
	if env.Tag != s.Tag {
		return fmt.Errorf("tag mismatch: expected %s, got %s", s.Tag, env.Tag)
	}

	for _, key := range s.Required {
		if _, ok := env.Data[key]; !ok {
			return fmt.Errorf("missing required field %q", key)
		}
	}

	if s.Validator != nil {
		if err := s.Validator(env); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	return nil
}

// TagRegistry holds the known tag schemas.
type TagRegistry struct {
	mu      sync.RWMutex
	schemas map[Tag]*TagSchema
}

// NewTagRegistry creates an empty registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{
		schemas: make(map[Tag]*TagSchema),
	}
}

// Register adds a schema, replacing any existing schema for the same tag.
func (r *TagRegistry) Register(schema *TagSchema) error {
	if err := schema.Tag.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.Tag] = schema
	return nil
}

// MustRegister adds a schema, panicking on error.
func (r *TagRegistry) MustRegister(schema *TagSchema) {
	if err := r.Register(schema); err != nil {
		panic(fmt.Sprintf("failed to register tag schema: %v", err))
	}
}

// Get returns the schema for tag.
func (r *TagRegistry) Get(tag Tag) (*TagSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[tag]
	return schema, ok
}

// Validate checks env against the schema registered for its tag.
func (r *TagRegistry) Validate(env *Envelope) error {
	schema, ok := r.Get(env.Tag)
	if !ok {
		return fmt.Errorf("unknown tag: %s", env.Tag)
	}
	return schema.Validate(env)
}

// Has returns true if a schema exists for tag.
func (r *TagRegistry) Has(tag Tag) bool {
	_, ok := r.Get(tag)
	return ok
}

// Tags returns all registered tags in sorted order.
func (r *TagRegistry) Tags() []Tag {
	r.mu.RLock()
	tags := make([]Tag, 0, len(r.schemas))
	for t := range r.schemas {
		tags = append(tags, t)
	}
	r.mu.RUnlock()

	slices.Sort(tags)
	return tags
}
