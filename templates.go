package mailmerge

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.yaml
var embeddedTemplates embed.FS

// EmbeddedTemplates exposes the bundled sample templates so callers can send
// without a templates directory of their own.
func EmbeddedTemplates() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return embeddedTemplates
	}
	return sub
}
