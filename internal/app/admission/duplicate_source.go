package admission

import (
	"context"

	"github.com/osa030/videowall/internal/domain/source"
)

// QueueReader is the queue view the duplicate filter needs.
type QueueReader interface {
	Contains(src source.Source) bool
}

// DuplicateSourceFilter rejects sources already waiting in the queue.
type DuplicateSourceFilter struct {
	queue QueueReader
}

// NewDuplicateSourceFilter creates a new duplicate source filter.
func NewDuplicateSourceFilter(queue QueueReader) *DuplicateSourceFilter {
	return &DuplicateSourceFilter{queue: queue}
}

func (f *DuplicateSourceFilter) Name() string {
	return "duplicate_source_filter"
}

func (f *DuplicateSourceFilter) Description() string {
	return "Rejects a source whose kind and ref are already queued"
}

func (f *DuplicateSourceFilter) ReturnCodes() []string {
	return []string{"duplicate_source"}
}

// ValidateConfig accepts any settings; the filter has none.
func (f *DuplicateSourceFilter) ValidateConfig(map[string]any) error {
	return nil
}

func (f *DuplicateSourceFilter) Check(_ context.Context, src source.Source) Result {
	if f.queue.Contains(src) {
		return Reject("duplicate_source")
	}
	return Accept()
}

func init() {
	Register("duplicate_source_filter", func(deps Deps) Filter {
		return NewDuplicateSourceFilter(deps.Queue)
	})
}
