// Package message turns a template plus one recipient entry into a rendered
// email. Sources use pongo2 syntax (`{{ company }}`, filters, conditionals);
// HTML bodies are escaped while rendering and sanitised afterwards, and
// header values are folded onto one line.
package message
