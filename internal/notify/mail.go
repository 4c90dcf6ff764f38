package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// PauseTemplateCode is the template of the task pause notification
const PauseTemplateCode = "PIPELINE_TASK_PAUSE_NOTIFY"

// Template is the title and body of a message, written as text/template sources over the message
// params.
type Template struct {
	Title string
	Body  string
}

// DefaultTemplates are the templates known to a MailSender unless replaced
var DefaultTemplates = map[string]Template{
	PauseTemplateCode: {
		Title: `Pipeline {{.pipelineName}} is paused (build {{.buildId}})`,
		Body: `Build {{.buildId}} of pipeline {{.pipelineName}}{{with .projectName}} in project {{.}}{{end}} is paused before task {{.taskName}} ({{.taskId}}).
The build continues after the task is resumed manually.`,
	},
}

type compiled struct {
	title *template.Template
	body  *template.Template
}

// MailConfig holds the SMTP settings of a MailSender
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// Domain turns user IDs without an @ into addresses
	Domain string
}

// MailSender renders templated messages and delivers them over SMTP
type MailSender struct {
	conf      MailConfig
	templates map[string]compiled
}

func NewMailSender(conf MailConfig, templates map[string]Template) (*MailSender, error) {
	if templates == nil {
		templates = DefaultTemplates
	}

	s := &MailSender{conf: conf, templates: make(map[string]compiled, len(templates))}
	for code, t := range templates {
		title, err := template.New(code + ".title").Option("missingkey=zero").Parse(t.Title)
		if err != nil {
			return nil, fmt.Errorf("invalid title template %s: %w", code, err)
		}
		body, err := template.New(code + ".body").Option("missingkey=zero").Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid body template %s: %w", code, err)
		}
		s.templates[code] = compiled{title: title, body: body}
	}
	return s, nil
}

func (s *MailSender) SendTemplated(ctx context.Context, msg TemplateMessage) error {
	m, err := s.Build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.conf.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.conf.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.conf.User),
			mail.WithPassword(s.conf.Password),
		)
	}

	client, err := mail.NewClient(s.conf.Host, opts...)
	if err != nil {
		return fmt.Errorf("could not create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("could not send %s to %v: %w", msg.TemplateCode, msg.Receivers, err)
	}

	log.Debug().
		Str("template", msg.TemplateCode).
		Strs("receivers", msg.Receivers).
		Msg("Sent notification")
	return nil
}

// Build renders msg into a mail message without sending it
func (s *MailSender) Build(msg TemplateMessage) (*mail.Msg, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	t, ok := s.templates[msg.TemplateCode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown template %s", ErrInvalidMessage, msg.TemplateCode)
	}

	title, err := render(t.title, msg.TitleParams)
	if err != nil {
		return nil, err
	}
	body, err := render(t.body, msg.BodyParams)
	if err != nil {
		return nil, err
	}

	m := mail.NewMsg()
	from := s.conf.From
	if msg.Sender != "" {
		from = fmt.Sprintf("%s <%s>", msg.Sender, s.conf.From)
	}
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}

	addresses := make([]string, 0, len(msg.Receivers))
	for _, r := range msg.Receivers {
		addresses = append(addresses, s.address(r))
	}
	if err := m.To(addresses...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	m.Subject(title)
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

func (s *MailSender) address(user string) string {
	user = strings.TrimSpace(user)
	if strings.Contains(user, "@") || s.conf.Domain == "" {
		return user
	}
	return user + "@" + s.conf.Domain
}

func render(t *template.Template, params map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("could not render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
