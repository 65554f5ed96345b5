package automerge

import "time"

// Handler exposes an Engine through the host session lifecycle. Open, Close
// and GC are pass-throughs; expiry is delegated to the store TTL.
type Handler struct {
	*Engine
}

// NewHandler wraps engine.
func NewHandler(engine *Engine) *Handler {
	return &Handler{Engine: engine}
}

// Open always succeeds.
func (h *Handler) Open(savePath, name string) bool {
	return true
}

// Close always succeeds.
func (h *Handler) Close() bool {
	return true
}

// GC always succeeds; stored sessions expire through their TTL.
func (h *Handler) GC(maxAge time.Duration) bool {
	return true
}
