// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/mailblast/mailblast-backend/internal/model"
)

// mergeTags maps each supported token to its resolver. Missing fields
// resolve to the empty string; full_name is empty when both parts are.
var mergeTags = map[string]func(c *model.Contact) string{
	"first_name": func(c *model.Contact) string { return c.FirstName },
	"last_name":  func(c *model.Contact) string { return c.LastName },
	"email":      func(c *model.Contact) string { return c.Email },
	"company":    func(c *model.Contact) string { return c.Company },
	"full_name": func(c *model.Contact) string {
		return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	},
}

// RenderTemplate substitutes {{token}} merge tags in a single pass over the
// text. Every occurrence is replaced; unknown tokens are left verbatim. The
// HTML is opaque here, nothing is interpreted or escaped.
func RenderTemplate(text string, c *model.Contact) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		if text[i] == '{' && i+1 < len(text) && text[i+1] == '{' {
			if rel := strings.Index(text[i+2:], "}}"); rel >= 0 {
				name := text[i+2 : i+2+rel]
				if resolve, ok := mergeTags[name]; ok {
					b.WriteString(resolve(c))
					i += rel + 4
					continue
				}
			}
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}
