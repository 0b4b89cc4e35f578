// Package admission provides the filter chain run in front of enqueue.
package admission

import (
	"context"

	"github.com/osa030/videowall/internal/domain/source"
)

// CodeQueueFull is returned when the queue is at capacity.
const CodeQueueFull = "queue_full"

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "duplicate_source", "invalid_ref", "queue_full"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for enqueue filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check.
	Check(ctx context.Context, src source.Source) Result
}

// Deps carries what a filter factory may need from the host.
type Deps struct {
	Queue QueueReader
}

// Factory builds a filter from host dependencies.
type Factory func(deps Deps) Filter

// registry holds all registered filter factories.
var registry = make(map[string]Factory)

// Register registers a filter factory.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]Factory {
	return registry
}
