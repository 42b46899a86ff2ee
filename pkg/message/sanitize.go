package message

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	bodyPolicyOnce sync.Once
	bodyPolicy     *bluemonday.Policy
)

// SanitizeHTML strips scripts, event handlers and other unsafe markup from a
// rendered HTML body while keeping the layout attributes mail clients rely on.
func SanitizeHTML(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(bodySanitizer().Sanitize(trimmed))
}

func bodySanitizer() *bluemonday.Policy {
	bodyPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowElements("center", "font")
		policy.AllowAttrs("align", "valign", "bgcolor", "width", "height").
			OnElements("table", "tr", "td", "th", "img", "div", "p")
		policy.AllowAttrs("cellpadding", "cellspacing", "border").OnElements("table")
		policy.AllowAttrs("color", "face", "size").OnElements("font")
		policy.RequireNoFollowOnLinks(false)
		bodyPolicy = policy
	})
	return bodyPolicy
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// sanitizeHeader folds line breaks so rendered values cannot inject headers.
func sanitizeHeader(value string) string {
	return strings.TrimSpace(headerBreaks.Replace(value))
}
