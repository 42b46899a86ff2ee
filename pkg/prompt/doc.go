// Package prompt wraps survey/v2 behind a small Driver interface used by the
// interactive composer.
package prompt
