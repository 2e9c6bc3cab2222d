package catalog

import "sync/atomic"

// Holder publishes the current Index. Refreshing the catalog builds a new
// Index and swaps it in; a resolution that already called Load keeps the
// snapshot it started with.
type Holder struct {
	current atomic.Pointer[Index]
}

// NewHolder returns a holder publishing idx (which may be nil).
func NewHolder(idx *Index) *Holder {
	h := &Holder{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Load returns the current snapshot, or nil if none was published yet.
func (h *Holder) Load() *Index {
	return h.current.Load()
}

// Swap publishes idx and returns the previous snapshot.
func (h *Holder) Swap(idx *Index) *Index {
	return h.current.Swap(idx)
}
