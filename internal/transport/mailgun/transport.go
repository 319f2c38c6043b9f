package mailgun

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/mailfan/massmail/internal/core"
)

// Transport implements the core.Transport interface for Mailgun.
type Transport struct {
	client mailgun.Mailgun
}

// New creates a new Mailgun transport.
func New(settings core.Settings) (core.Transport, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "Mailgun API key is required")
	}

	domain := settings.Get("domain")
	if domain == "" {
		return nil, core.NewValidationError("domain", "Mailgun domain is required")
	}

	client := mailgun.NewMailgun(domain, apiKey)

	// EU customers run against a different API base
	if baseURL := settings.Get("base_url"); baseURL != "" {
		client.SetAPIBase(baseURL)
	}

	return &Transport{client: client}, nil
}

// Connect returns a sending handle on the shared client; the REST client
// carries no per-worker session state.
func (t *Transport) Connect(ctx context.Context) (core.Conn, error) {
	return &Conn{client: t.client}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "mailgun"
}

// Conn sends envelopes through the Mailgun messages API.
type Conn struct {
	client mailgun.Mailgun
}

// Send submits one envelope.
func (c *Conn) Send(ctx context.Context, env *core.Envelope) error {
	message := c.client.NewMessage(env.From, env.Subject, env.Body, env.To)
	if env.ReplyTo != "" {
		message.SetReplyTo(env.ReplyTo)
	}

	if _, _, err := c.client.Send(ctx, message); err != nil {
		return core.NewTransportError("mailgun", "send", err.Error())
	}

	return nil
}

// Close is a no-op; the underlying client is shared and stateless.
func (c *Conn) Close() error {
	return nil
}
