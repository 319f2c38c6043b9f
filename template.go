package massmail

import (
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mailfan/massmail/internal/core"
)

// BodyTemplate renders the per-recipient message body from a plain-text
// template. The source is parsed exactly once at construction; Render is a
// pure function of the template and the recipient's fields and is safe for
// concurrent use by all workers.
type BodyTemplate struct {
	tmpl *template.Template
}

// NewBodyTemplate parses the template source. The recipient is addressable
// inside the template under the name "recipient", so a row with a
// "firstname" column renders with {{.recipient.firstname}}. Referencing a
// field the recipient does not carry is a render error, not an empty string.
func NewBodyTemplate(src string) (*BodyTemplate, error) {
	tmpl, err := template.New("body").
		Option("missingkey=error").
		Funcs(templateFuncs()).
		Parse(src)
	if err != nil {
		return nil, NewTemplateError("body", "parse", "failed to parse body template", err)
	}
	return &BodyTemplate{tmpl: tmpl}, nil
}

// Render produces the message body for one recipient.
func (t *BodyTemplate) Render(r core.Recipient) (string, error) {
	var buf strings.Builder
	data := map[string]interface{}{
		"recipient": r,
	}
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", NewTemplateError("body", "render", "failed to render body template", err)
	}
	return buf.String(), nil
}

// templateFuncs returns the helper functions available to body templates.
func templateFuncs() template.FuncMap {
	titleCaser := cases.Title(language.English)
	return template.FuncMap{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"title":     titleCaser.String,
		"trim":      strings.TrimSpace,
		"join":      strings.Join,
		"split":     strings.Split,
		"replace":   strings.ReplaceAll,
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"now":       time.Now,
		"formatTime": func(format string, t time.Time) string {
			return t.Format(format)
		},
		"default": func(defaultValue, value interface{}) interface{} {
			if value == nil || value == "" {
				return defaultValue
			}
			return value
		},
	}
}
