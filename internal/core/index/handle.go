package index

import (
	"sync/atomic"

	"github.com/agenthands/moodmap/internal/core/model"
)

// Handle points at the generation readers should use. Publishing swaps the
// pointer; a reader holding the previous generation keeps a consistent view.
type Handle struct {
	current atomic.Pointer[Generation]
}

// Publish makes g current and returns the generation it replaced, if any.
func (h *Handle) Publish(g *Generation) *Generation {
	return h.current.Swap(g)
}

func (h *Handle) Current() (*Generation, error) {
	g := h.current.Load()
	if g == nil {
		return nil, model.ErrIndexUnavailable
	}
	return g, nil
}
