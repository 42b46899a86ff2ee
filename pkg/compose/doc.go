// Package compose builds recipient lists outside of code: ParseEntries and
// LoadEntriesFile read JSON or YAML documents for non-interactive sends, and
// Interactive walks a terminal user through editing entries and sending.
package compose
