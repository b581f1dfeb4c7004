package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/deppfellow/schoolhub/internal/config"
)

// MessageIDTag carries our message id to the provider so webhook events
// can be matched even before the provider id is stored.
const MessageIDTag = "message_id"

// Message is a rendered email addressed to one recipient.
type Message struct {
	ID      string
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
}

// NewSender picks the provider configured in cfg.
func NewSender(cfg config.IntegrationConfig, out io.Writer) (Sender, error) {
	switch cfg.EmailProvider {
	case "resend":
		return NewResendSender(cfg.ResendAPIKey, cfg.EmailFromName, cfg.EmailFromAddr), nil
	case "sendgrid":
		return NewSendgridSender(cfg.SendgridAPIKey, cfg.EmailFromName, cfg.EmailFromAddr), nil
	case "console", "":
		return NewConsoleSender(out, cfg.EmailFromName, cfg.EmailFromAddr), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

// ResendSender sends through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, fromName, fromAddr string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   fmt.Sprintf("%s <%s>", fromName, fromAddr),
	}
}

func (s *ResendSender) Name() string { return "resend" }

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Tags:    []resend.Tag{{Name: MessageIDTag, Value: msg.ID}},
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "resend: failed to send email")
	}
	return sent.Id, nil
}

// SendgridSender sends through the SendGrid v3 mail API.
type SendgridSender struct {
	key  string
	from *sgmail.Email
	host string
}

func NewSendgridSender(apiKey, fromName, fromAddr string) *SendgridSender {
	return &SendgridSender{
		key:  apiKey,
		from: sgmail.NewEmail(fromName, fromAddr),
		host: "https://api.sendgrid.com",
	}
}

func (s *SendgridSender) Name() string { return "sendgrid" }

func (s *SendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))
	p.SetCustomArg(MessageIDTag, msg.ID)

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

func (s *SendgridSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := sendgrid.GetRequest(s.key, "/v3/mail/send", s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return "", errors.Wrap(err, "sendgrid: failed to send email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", errors.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}

	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

// ConsoleSender writes messages to out instead of sending them. It keeps a
// copy of everything sent for local development and tests.
type ConsoleSender struct {
	out  io.Writer
	from string

	mu   sync.Mutex
	sent []Message
}

func NewConsoleSender(out io.Writer, fromName, fromAddr string) *ConsoleSender {
	return &ConsoleSender{
		out:  out,
		from: fmt.Sprintf("%s <%s>", fromName, fromAddr),
	}
}

func (s *ConsoleSender) Name() string { return "console" }

func (s *ConsoleSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if s.out != nil {
		body := new(strings.Builder)
		_, _ = fmt.Fprintf(body, "From: %s\r\n", s.from)
		_, _ = fmt.Fprintf(body, "To: %s\r\n", msg.To)
		_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
		_, _ = fmt.Fprintf(body, "Subject: %s\r\n", msg.Subject)
		_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n")
		_, _ = fmt.Fprintf(body, "%s\r\n", msg.HTML)
		_, _ = io.WriteString(s.out, body.String())
	}

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	return "console_" + uuid.NewString(), nil
}

// Sent returns a copy of the messages sent so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
