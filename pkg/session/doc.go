// Package session is the presentation boundary of a bulk send. A Session owns
// the entry list for one template snapshot, validates on submit, records
// per-field errors keyed by current position, and exposes the orchestrator's
// in-flight flags, the blocking error banner and the result view.
package session
