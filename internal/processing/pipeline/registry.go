package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/core/failure"
)

var (
	// ErrUnknownPipelineType is returned when an event maps to no registered pipeline.
	ErrUnknownPipelineType = errors.New("unknown pipeline type")
	// ErrNoTypeFunc is returned when a registry is built without a type function.
	ErrNoTypeFunc = errors.New("pipeline type function is not configured")
)

// TypeFunc derives the pipeline type tag of an event.
type TypeFunc func(ev domain.Event) (string, error)

// Constructor builds the engine for one pipeline type.
type Constructor func() (*Engine, error)

// Registry maps events to the engine that should process them.
type Registry struct {
	typeOf  TypeFunc
	engines map[string]*Engine
}

// NewRegistry builds every engine up front so that invalid schemas fail at
// startup rather than on the first matching event.
func NewRegistry(typeOf TypeFunc, constructors map[string]Constructor) (*Registry, error) {
	if typeOf == nil {
		return nil, failure.New(failure.KindConfiguration, failure.CodeConfigMissing,
			"pipeline registry cannot classify events", ErrNoTypeFunc)
	}

	engines := make(map[string]*Engine, len(constructors))
	for name, build := range constructors {
		engine, err := build()
		if err != nil {
			return nil, fmt.Errorf("build pipeline %q: %w", name, err)
		}
		engines[name] = engine
	}

	return &Registry{typeOf: typeOf, engines: engines}, nil
}

// NewRegistryFromSchemas builds a registry whose engines share one catalog and option set.
func NewRegistryFromSchemas(typeOf TypeFunc, schemas map[string]Schema, catalog *Catalog, opts ...Option) (*Registry, error) {
	constructors := make(map[string]Constructor, len(schemas))
	for name, schema := range schemas {
		constructors[name] = func() (*Engine, error) {
			return NewEngine(name, schema, catalog, opts...)
		}
	}
	return NewRegistry(typeOf, constructors)
}

// GetPipelineType returns the type tag for ev.
func (r *Registry) GetPipelineType(ev domain.Event) (string, error) {
	return r.typeOf(ev)
}

// GetPipeline returns the engine registered for ev's type tag.
func (r *Registry) GetPipeline(ev domain.Event) (*Engine, error) {
	tag, err := r.typeOf(ev)
	if err != nil {
		return nil, err
	}
	engine, ok := r.engines[tag]
	if !ok {
		return nil, failure.Validation(
			fmt.Sprintf("event %s cannot be processed", ev.ID),
			fmt.Errorf("%w: %q", ErrUnknownPipelineType, tag),
		).WithDetail("event_type", ev.Type)
	}
	return engine, nil
}

// Engine returns the engine registered under a type tag.
func (r *Registry) Engine(tag string) (*Engine, bool) {
	engine, ok := r.engines[tag]
	return engine, ok
}

// Types returns the registered pipeline types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.engines))
	for t := range r.engines {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ByEventType maps the event type through mapping, falling back to fallback
// when set. Without a mapping entry or fallback the event type itself is used.
func ByEventType(mapping map[string]string, fallback string) TypeFunc {
	return func(ev domain.Event) (string, error) {
		return resolveTag(ev.Type, mapping, fallback), nil
	}
}

// ByPayloadField reads the tag from a string payload field.
func ByPayloadField(field string, mapping map[string]string, fallback string) TypeFunc {
	return func(ev domain.Event) (string, error) {
		raw, ok := ev.Payload[field]
		if !ok {
			if fallback != "" {
				return fallback, nil
			}
			return "", failure.Validation(
				fmt.Sprintf("event %s has no %q field", ev.ID, field),
				ErrUnknownPipelineType,
			)
		}
		value, ok := raw.(string)
		if !ok {
			return "", failure.Validation(
				fmt.Sprintf("event %s field %q is %T, want string", ev.ID, field, raw),
				ErrUnknownPipelineType,
			)
		}
		return resolveTag(value, mapping, fallback), nil
	}
}

func resolveTag(value string, mapping map[string]string, fallback string) string {
	if tag, ok := mapping[value]; ok {
		return tag
	}
	if fallback != "" {
		return fallback
	}
	return value
}
