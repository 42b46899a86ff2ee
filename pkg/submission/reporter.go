package submission

import "sync"

// Reporter holds the latest outcome and whether its result view is open.
type Reporter struct {
	mu      sync.RWMutex
	outcome *Outcome
	visible bool
}

// NewReporter returns an empty, hidden reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Show replaces any prior outcome and opens the result view.
func (r *Reporter) Show(outcome Outcome) {
	clone := outcome.Clone()
	r.mu.Lock()
	r.outcome = &clone
	r.visible = true
	r.mu.Unlock()
}

// Dismiss closes the result view; the last outcome is kept.
func (r *Reporter) Dismiss() {
	r.mu.Lock()
	r.visible = false
	r.mu.Unlock()
}

// Outcome returns the last outcome shown, if any.
func (r *Reporter) Outcome() (Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.outcome == nil {
		return Outcome{}, false
	}
	return r.outcome.Clone(), true
}

func (r *Reporter) Visible() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible
}
