// Package template describes the email templates consumed by the mail merge
// pipeline. A Template carries the subject/body sources plus the ordered set
// of placeholder names every recipient entry must supply. Templates are loaded
// from JSON or YAML documents via LoadFS and treated as read-only snapshots by
// the form and session packages: a new placeholder set means a new snapshot,
// never an in-place mutation.
package template
