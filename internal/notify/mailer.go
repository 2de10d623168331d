// Package notify sends notification emails.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"skillswap/pkg/circuitbreaker"
	"skillswap/pkg/config"
	"skillswap/pkg/metrics"
)

var ErrUnknownTemplate = errors.New("unknown notification template")

// Recipient is who receives a notification.
type Recipient struct {
	Email string
	Name  string
}

// Sender delivers one templated notification.
type Sender interface {
	Send(ctx context.Context, to Recipient, tmpl Template, vars map[string]any) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender renders templates and sends them over SMTP behind a circuit
// breaker.
type SMTPSender struct {
	cfg      config.SMTPConfig
	server   string
	auth     smtp.Auth
	breaker  *circuitbreaker.CircuitBreaker
	compiled map[Template]*template.Template
	send     sendFunc
	logger   *zap.Logger
}

func NewSMTPSender(cfg config.SMTPConfig, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) (*SMTPSender, error) {
	compiled, err := compile()
	if err != nil {
		return nil, err
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		cfg:      cfg,
		server:   cfg.Host + ":" + cfg.Port,
		auth:     auth,
		breaker:  breaker,
		compiled: compiled,
		send:     smtp.SendMail,
		logger:   logger,
	}, nil
}

// Configured reports whether enough settings exist to send mail.
func Configured(cfg config.SMTPConfig) bool {
	return cfg.Host != "" && cfg.Port != "" && cfg.From != ""
}

func compile() (map[Template]*template.Template, error) {
	out := make(map[Template]*template.Template, len(templates))
	for name, def := range templates {
		t, err := template.New(string(name)).Parse(layoutHead + def.body + layoutFoot)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func (s *SMTPSender) Send(ctx context.Context, to Recipient, tmpl Template, vars map[string]any) error {
	msg, err := s.render(to, tmpl, vars)
	if err != nil {
		metrics.RecordNotification(string(tmpl), "render_error")
		return err
	}

	err = s.breaker.Execute(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.send(s.server, s.auth, s.cfg.From, []string{to.Email}, msg)
	})
	if err != nil {
		metrics.RecordNotification(string(tmpl), "failed")
		return fmt.Errorf("send %s to %s: %w", tmpl, to.Email, err)
	}

	metrics.RecordNotification(string(tmpl), "sent")
	s.logger.Info("Notification sent", zap.String("template", string(tmpl)), zap.String("to", to.Email))
	return nil
}

func (s *SMTPSender) render(to Recipient, tmpl Template, vars map[string]any) ([]byte, error) {
	t, ok := s.compiled[tmpl]
	def, okDef := templates[tmpl]
	if !ok || !okDef {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, tmpl)
	}

	data := map[string]any{"Name": to.Name}
	for k, v := range vars {
		data[k] = v
	}
	var html bytes.Buffer
	if err := t.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", tmpl, err)
	}

	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
	}
	boundary := "boundary-skillswap"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to.Email)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", def.subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", def.subject)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", strings.TrimSpace(html.String()))
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes(), nil
}

// LogSender only logs notifications. It is used when SMTP is not configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, to Recipient, tmpl Template, vars map[string]any) error {
	if _, ok := templates[tmpl]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, tmpl)
	}
	metrics.RecordNotification(string(tmpl), "logged")
	l.logger.Info("Notification (smtp disabled)",
		zap.String("template", string(tmpl)),
		zap.String("to", to.Email),
		zap.Any("vars", vars),
	)
	return nil
}
