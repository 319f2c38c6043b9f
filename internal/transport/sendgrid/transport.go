package sendgrid

import (
	"context"
	netmail "net/mail"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/mailfan/massmail/internal/core"
)

// Transport implements the core.Transport interface for SendGrid.
type Transport struct {
	client *sendgrid.Client
}

// New creates a new SendGrid transport.
func New(settings core.Settings) (core.Transport, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "SendGrid API key is required")
	}

	return &Transport{client: sendgrid.NewSendClient(apiKey)}, nil
}

// Connect returns a sending handle on the shared client; the REST client
// carries no per-worker session state.
func (t *Transport) Connect(ctx context.Context) (core.Conn, error) {
	return &Conn{client: t.client}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "sendgrid"
}

// Conn sends envelopes through the SendGrid v3 mail send API.
type Conn struct {
	client *sendgrid.Client
}

// Send submits one envelope.
func (c *Conn) Send(ctx context.Context, env *core.Envelope) error {
	message := mail.NewV3MailInit(
		sgAddress(env.From),
		env.Subject,
		sgAddress(env.To),
		mail.NewContent("text/plain", env.Body),
	)
	if env.ReplyTo != "" {
		message.SetReplyTo(sgAddress(env.ReplyTo))
	}

	response, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return core.NewTransportError("sendgrid", "send", "failed to send email: "+err.Error())
	}
	if response.StatusCode >= 400 {
		return core.NewTransportError("sendgrid", "api", "SendGrid API error: "+response.Body)
	}

	return nil
}

// Close is a no-op; the underlying client is shared and stateless.
func (c *Conn) Close() error {
	return nil
}

// sgAddress converts an RFC 5322 address, with or without a display name,
// into the SendGrid helper form.
func sgAddress(s string) *mail.Email {
	if a, err := netmail.ParseAddress(s); err == nil {
		return mail.NewEmail(a.Name, a.Address)
	}
	return mail.NewEmail("", s)
}
