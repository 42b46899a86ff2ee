// Package form holds the dynamic multi-entry form model behind a bulk send:
// the variable map factory, the schema generated at runtime from a template's
// placeholder names, and the ordered entry list controller.
//
// Schemas are generated, never declared: NewSchema turns a placeholder set
// into a validator whose DefaultEntry and ValidateEntry share the same
// snapshot, so new entries can never drift from the rules that check them.
// Validation errors are plain data keyed by field path (`forms[1].email`,
// `forms[0].variables[company]`, or `forms` for collection-level rules) and are
// collected exhaustively rather than failing on the first problem.
package form
