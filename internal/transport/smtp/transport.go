package smtp

import (
	"context"
	"crypto/tls"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/mailfan/massmail/internal/core"
)

// Transport implements the core.Transport interface for SMTP. Every call
// to Connect dials, negotiates STARTTLS and authenticates a fresh session;
// the returned connection is meant to live for a worker's whole lifetime.
type Transport struct {
	config core.Settings
}

// New creates a new SMTP transport.
func New(settings core.Settings) (core.Transport, error) {
	host := settings.Get("host")
	if host == "" {
		return nil, core.NewValidationError("host", "SMTP host is required")
	}

	port := settings.Get("port")
	if port == "" {
		return nil, core.NewValidationError("port", "SMTP port is required")
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, core.NewValidationError("port", "invalid port number: "+port)
	}

	if settings.Get("username") == "" {
		return nil, core.NewValidationError("username", "SMTP username is required")
	}
	if settings.Get("password") == "" {
		return nil, core.NewValidationError("password", "SMTP password is required")
	}

	return &Transport{config: settings}, nil
}

// Connect dials the server and returns an authenticated session. STARTTLS
// is unconditional; a server that cannot offer it is rejected.
func (t *Transport) Connect(ctx context.Context) (core.Conn, error) {
	host := t.config.Get("host")
	addr := net.JoinHostPort(host, t.config.Get("port"))

	var dialer net.Dialer
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, core.WrapTransportError("smtp", "connect", err)
	}

	client, err := smtp.NewClient(nc, host)
	if err != nil {
		nc.Close()
		return nil, core.WrapTransportError("smtp", "connect", err)
	}

	if helo := t.config.Get("helo_hostname"); helo != "" {
		if err := client.Hello(helo); err != nil {
			client.Close()
			return nil, core.WrapTransportError("smtp", "hello", err)
		}
	}

	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}
	if t.config.Get("tls_skip_verify") == "true" {
		tlsConfig.InsecureSkipVerify = true
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		client.Close()
		return nil, core.WrapTransportError("smtp", "starttls", err)
	}

	auth := smtp.PlainAuth("", t.config.Get("username"), t.config.Get("password"), host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, core.WrapTransportError("smtp", "auth", err)
	}

	return &Conn{client: client}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

// Conn is one authenticated SMTP session. Send runs a full mail
// transaction per envelope; a failed transaction is reset so the session
// stays usable for the next envelope.
type Conn struct {
	client *smtp.Client
}

// Send submits one envelope over the session.
func (c *Conn) Send(ctx context.Context, env *core.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.transact(env); err != nil {
		if rerr := c.client.Reset(); rerr != nil {
			return core.WrapTransportError("smtp", "reset", rerr)
		}
		return err
	}

	return nil
}

// Close ends the session with QUIT.
func (c *Conn) Close() error {
	if err := c.client.Quit(); err != nil {
		return core.WrapTransportError("smtp", "quit", err)
	}
	return nil
}

func (c *Conn) transact(env *core.Envelope) error {
	if err := c.client.Mail(bareAddress(env.From)); err != nil {
		return core.WrapTransportError("smtp", "mail", err)
	}
	if err := c.client.Rcpt(bareAddress(env.To)); err != nil {
		return core.WrapTransportError("smtp", "rcpt", err)
	}

	w, err := c.client.Data()
	if err != nil {
		return core.WrapTransportError("smtp", "data", err)
	}
	if _, err := w.Write(buildMessage(env)); err != nil {
		w.Close()
		return core.WrapTransportError("smtp", "write", err)
	}
	if err := w.Close(); err != nil {
		return core.WrapTransportError("smtp", "data", err)
	}

	return nil
}

// bareAddress strips an optional display name, so "Ann <ann@example.com>"
// becomes "ann@example.com". MAIL FROM and RCPT TO take bare addresses
// only.
func bareAddress(s string) string {
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Address
	}
	return s
}

// buildMessage renders the envelope in RFC 5322 format.
func buildMessage(env *core.Envelope) []byte {
	var msg strings.Builder

	msg.WriteString("From: " + env.From + "\r\n")
	msg.WriteString("To: " + env.To + "\r\n")
	if env.ReplyTo != "" {
		msg.WriteString("Reply-To: " + env.ReplyTo + "\r\n")
	}
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", env.Subject) + "\r\n")
	msg.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(env.Body)
	msg.WriteString("\r\n")

	return []byte(msg.String())
}
