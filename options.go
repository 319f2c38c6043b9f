package massmail

import (
	"log/slog"
)

// Option is a functional option for configuring the dispatcher.
type Option func(*Dispatcher)

// WithTransport sets an already constructed delivery transport, bypassing
// the transport selection in the server configuration.
func WithTransport(t Transport) Option {
	return func(d *Dispatcher) {
		d.transport = t
	}
}

// WithTransportSettings selects a delivery backend and its settings.
func WithTransportSettings(t TransportType, settings Settings) Option {
	return func(d *Dispatcher) {
		d.cfg.Transport = t
		d.cfg.Settings = settings
	}
}

// WithWorkers sets the number of concurrent sender workers.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		d.cfg.Workers = n
	}
}

// WithQueueCapacity sets the bound on the recipient queue.
func WithQueueCapacity(n int) Option {
	return func(d *Dispatcher) {
		d.queueCap = n
	}
}

// WithLogger sets the structured logger used by the dispatcher and its
// workers.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithRenderer replaces the body template renderer.
func WithRenderer(r Renderer) Option {
	return func(d *Dispatcher) {
		d.renderer = r
	}
}

// WithDryRun routes every envelope to standard output instead of a
// delivery backend.
func WithDryRun() Option {
	return func(d *Dispatcher) {
		d.cfg.Transport = TransportStdout
	}
}

// WithAWSSES selects the Amazon SES transport.
func WithAWSSES(region string) Option {
	return WithTransportSettings(TransportAWSSES, Settings{
		"region": region,
	})
}

// WithAWSSESCredentials selects the Amazon SES transport with explicit
// credentials.
func WithAWSSESCredentials(region, accessKey, secretKey string) Option {
	return WithTransportSettings(TransportAWSSES, Settings{
		"region":     region,
		"access_key": accessKey,
		"secret_key": secretKey,
	})
}

// WithSendGrid selects the SendGrid transport.
func WithSendGrid(apiKey string) Option {
	return WithTransportSettings(TransportSendGrid, Settings{
		"api_key": apiKey,
	})
}

// WithMailgun selects the Mailgun transport.
func WithMailgun(apiKey, domain string) Option {
	return WithTransportSettings(TransportMailgun, Settings{
		"api_key": apiKey,
		"domain":  domain,
	})
}

// WithMailgunEU selects the Mailgun transport on the EU region endpoint.
func WithMailgunEU(apiKey, domain string) Option {
	return WithTransportSettings(TransportMailgun, Settings{
		"api_key":  apiKey,
		"domain":   domain,
		"base_url": "https://api.eu.mailgun.net",
	})
}
