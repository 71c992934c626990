package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/platform/id"
)

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	RequireTLS bool
}

// Configured reports whether enough is set to attempt delivery.
func (c SMTPConfig) Configured() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

// SMTPSender sends mail through one SMTP server per message.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer net.Dialer
	now    func() time.Time
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if !cfg.Configured() {
		return nil, errors.New("smtp host and from address are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("parse from address: %w", err)
	}
	return &SMTPSender{cfg: cfg, now: time.Now}, nil
}

// Send delivers one message. Any failure is reported as a delivery failure
// carrying the recipient.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := s.send(ctx, to, subject, htmlBody); err != nil {
		return apperrors.WrapWithMetadata(
			apperrors.CodeDeliveryFailure,
			fmt.Sprintf("send to %s: %v", to, err),
			map[string]string{"Recipient": to},
			err,
		)
	}
	return nil
}

func (s *SMTPSender) send(ctx context.Context, to, subject, htmlBody string) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	} else if s.cfg.RequireTLS {
		return errors.New("server does not support STARTTLS")
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	from, _ := mail.ParseAddress(s.cfg.From)
	if err := client.Mail(from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	msg, err := s.buildMessage(to, subject, htmlBody)
	if err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}

// buildMessage renders a single-part HTML message with a base64 body.
func (s *SMTPSender) buildMessage(to, subject, htmlBody string) ([]byte, error) {
	messageID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	from, _ := mail.ParseAddress(s.cfg.From)
	sender := mail.Address{Name: s.cfg.FromName, Address: from.Address}
	domain := from.Address[strings.LastIndex(from.Address, "@")+1:]

	var buf bytes.Buffer
	writeHeader := func(key, value string) {
		buf.WriteString(key + ": " + value + "\r\n")
	}
	writeHeader("From", sender.String())
	writeHeader("To", to)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", subject))
	writeHeader("Date", s.now().Format(time.RFC1123Z))
	writeHeader("Message-ID", "<"+messageID+"@"+domain+">")
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/html; charset="utf-8"`)
	writeHeader("Content-Transfer-Encoding", "base64")
	buf.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(htmlBody))
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded + "\r\n")
	return buf.Bytes(), nil
}
