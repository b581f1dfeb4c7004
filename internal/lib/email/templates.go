package email

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Template names an embedded email template.
type Template string

const (
	TemplateWelcome           Template = "welcome"
	TemplatePaymentReceipt    Template = "payment_receipt"
	TemplatePaymentFailed     Template = "payment_failed"
	TemplateLiveClassReminder Template = "live_class_reminder"
	TemplateLiveClassCancel   Template = "live_class_cancelled"
	TemplateTicketUpdate      Template = "ticket_update"
	TemplateSLABreach         Template = "sla_breach"
	TemplateAnnouncement      Template = "announcement"
)

// Templates lists every template with its default category.
var Templates = map[Template]Category{
	TemplateWelcome:           CategoryTransactional,
	TemplatePaymentReceipt:    CategoryTransactional,
	TemplatePaymentFailed:     CategoryTransactional,
	TemplateLiveClassReminder: CategoryLiveClassReminders,
	TemplateLiveClassCancel:   CategoryCourseUpdates,
	TemplateTicketUpdate:      CategorySupportUpdates,
	TemplateSLABreach:         CategoryTransactional,
	TemplateAnnouncement:      CategoryMarketing,
}

// ErrUnknownTemplate is returned when no embedded template has the name.
var ErrUnknownTemplate = errors.New("email: unknown template")

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"datetime": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
		case *time.Time:
			if t == nil {
				return ""
			}
			return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
		default:
			return fmt.Sprint(v)
		}
	},
}

// Renderer holds the parsed templates. Each template file defines a
// "subject" block and a "content" block rendered inside layout.html.
type Renderer struct {
	templates map[Template]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Template]*template.Template, len(Templates))}

	for name := range Templates {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			fmt.Sprintf("templates/%s.html", name),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse email template %s", name)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

// MustNewRenderer panics on a broken embedded template.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Rendered is a template ready to send.
type Rendered struct {
	Subject string
	HTML    string
}

// Render executes the subject and layout of name with data. The subject is
// plain text, so the HTML escaping applied by the template is undone.
func (r *Renderer) Render(name Template, data map[string]any) (Rendered, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return Rendered{}, errors.Wrapf(ErrUnknownTemplate, "%q", string(name))
	}

	var subject bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Rendered{}, errors.Wrapf(err, "failed to execute subject of %s", name)
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout.html", data); err != nil {
		return Rendered{}, errors.Wrapf(err, "failed to execute email template %s", name)
	}

	return Rendered{
		Subject: html.UnescapeString(strings.TrimSpace(subject.String())),
		HTML:    body.String(),
	}, nil
}
