package convert

import (
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/tscn"
)

// HandleAllocator hands out external-resource handles in strict first-use
// order within one file's emission: the first distinct key gets 0, the next
// 1, and so on. The ordering must be reproduced exactly for output
// stability, so allocation is never parallelized.
type HandleAllocator struct {
	order []tscn.ExtResource
	byKey map[string]int
}

func NewHandleAllocator() *HandleAllocator {
	return &HandleAllocator{byKey: map[string]int{}}
}

// Alloc returns the handle for key, allocating one on first use.
func (h *HandleAllocator) Alloc(key, path, resType string) int {
	if id, ok := h.byKey[key]; ok {
		return id
	}
	id := len(h.order)
	h.byKey[key] = id
	h.order = append(h.order, tscn.ExtResource{ID: id, Type: resType, Path: path})
	return id
}

// HandleFor reports an already-allocated handle without allocating.
func (h *HandleAllocator) HandleFor(key string) (int, bool) {
	id, ok := h.byKey[key]
	return id, ok
}

// ExtResources lists the allocations in handle order for scene emission.
func (h *HandleAllocator) ExtResources() []tscn.ExtResource {
	return h.order
}
