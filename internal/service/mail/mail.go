// Package mail delivers password reset links.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/nkiryanov/authservice/internal/logger"
)

const (
	defaultPort    = 587
	defaultTimeout = 10 * time.Second

	resetSubject = "Password reset request"
)

var resetBody = template.Must(template.New("reset").Parse(`<p>We received a request to reset your password. Follow the link to set a new one (valid for 1 hour):</p>
<p><a href="{{.}}">{{.}}</a></p>
<p>If it was not you, ignore this email.</p>
`))

// Build link to the reset page: baseURL + path with token as query parameter
func ResetLink(baseURL string, path string, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url. Err: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q has to be absolute", baseURL)
	}

	u = u.JoinPath(path)
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

type Config struct {
	Host     string
	Port     int // 587 if not set
	Username string
	Password string
	From     string

	// Dial and send timeout, 10s if not set
	Timeout time.Duration
}

// Mailer sends reset links through SMTP server
// STARTTLS is used when server supports it, one attempt per link
type SMTPMailer struct {
	from   string
	client *gomail.Client
}

func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and sender address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("can't create smtp client. Err: %w", err)
	}

	return &SMTPMailer{from: cfg.From, client: client}, nil
}

func (m *SMTPMailer) SendResetLink(ctx context.Context, address string, link string) error {
	msg, err := m.resetMessage(address, link)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("can't send reset link. Err: %w", err)
	}
	return nil
}

func (m *SMTPMailer) resetMessage(address string, link string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address. Err: %w", err)
	}
	if err := msg.To(address); err != nil {
		return nil, fmt.Errorf("invalid recipient address. Err: %w", err)
	}
	msg.Subject(resetSubject)

	var body bytes.Buffer
	if err := resetBody.Execute(&body, link); err != nil {
		return nil, fmt.Errorf("can't render reset email. Err: %w", err)
	}
	msg.SetBodyString(gomail.TypeTextHTML, body.String())

	return msg, nil
}

// Mailer for local development: link is logged instead of being sent
type LogMailer struct {
	logger logger.Logger
}

func NewLogMailer(l logger.Logger) *LogMailer {
	return &LogMailer{logger: l}
}

func (m *LogMailer) SendResetLink(_ context.Context, address string, link string) error {
	m.logger.Info("Reset link not sent, smtp is not configured", "to", address, "link", link)
	return nil
}
