// Package mailer renders outbound email from job payloads and hands the
// result to a transport. Templates are embedded; transports are pluggable
// through the core.Mailer port.
package mailer

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var tmplFuncs = template.FuncMap{
	// prettyTime renders an RFC 3339 string as a human-readable timestamp,
	// passing anything unparseable through untouched.
	"prettyTime": func(value any) string {
		s, ok := value.(string)
		if !ok {
			return fmt.Sprint(value)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return s
		}
		return t.Format("Monday, January 2 at 3:04 PM MST")
	},
}

// defaultSubjects backstop payloads that arrive without a subject.
var defaultSubjects = map[string]string{
	"event_reminder":    "Your event reminder",
	"form_submission":   "New form submission",
	"form_confirmation": "Thanks for reaching out",
}

// Options configures the mailer service.
type Options struct {
	Transport core.Mailer // Required: delivery transport
	Logger    *slog.Logger
}

// Service turns email job payloads into delivered mail. Sender identity is
// the transport's concern.
type Service struct {
	transport core.Mailer
	templates *template.Template
	logger    *slog.Logger
}

// NewService parses the embedded templates and constructs the service.
func NewService(opts Options) (*Service, error) {
	if opts.Transport == nil {
		return nil, errors.New("mail transport is required")
	}

	templates, err := template.New("email").Funcs(tmplFuncs).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "mailer")
	}

	return &Service{
		transport: opts.Transport,
		templates: templates,
		logger:    logger,
	}, nil
}

// Deliver renders the payload's template and sends the message. Errors are
// returned so the job queue can retry delivery.
func (s *Service) Deliver(ctx context.Context, payload model.EmailJobPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	body, emailData, err := s.render(payload.Template, payload.Data)
	if err != nil {
		return err
	}

	subject := strings.TrimSpace(payload.Subject)
	if subject == "" {
		subject = defaultSubjects[payload.Template]
	}
	if subject == "" {
		subject = "PopMap notification"
	}

	msg := &core.MailMessage{
		To:       payload.To,
		ToName:   payload.ToName,
		Subject:  subject,
		TextBody: body,
	}
	if unsub, ok := emailData["unsubscribe_url"].(string); ok && unsub != "" {
		msg.Headers = map[string]string{"List-Unsubscribe": "<" + unsub + ">"}
	}

	if err := s.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", payload.Template, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "email delivered", "template", payload.Template, "to", payload.To)
	}
	return nil
}

// render executes the named template over the payload data.
func (s *Service) render(name string, raw json.RawMessage) (string, map[string]any, error) {
	tmpl := s.templates.Lookup(name + ".tmpl")
	if tmpl == nil {
		return "", nil, fmt.Errorf("unknown email template %q", name)
	}

	emailData := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &emailData); err != nil {
			return "", nil, fmt.Errorf("decode email data: %w", err)
		}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, emailData); err != nil {
		return "", nil, fmt.Errorf("render %s: %w", name, err)
	}
	return sb.String(), emailData, nil
}
