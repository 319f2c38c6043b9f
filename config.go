package massmail

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mailfan/massmail/internal/core"
)

// DefaultQueueCapacity bounds the recipient queue. It is a fixed constant,
// deliberately decoupled from the worker count: the queue is the backpressure
// mechanism keeping a large recipient list out of memory when workers are
// slow, not a function of how many workers drain it.
const DefaultQueueCapacity = 100

// DefaultWorkers is the worker count used when the configuration does not
// set one.
const DefaultWorkers = 1

// TransportType selects the delivery backend.
type TransportType string

const (
	// TransportSMTP delivers over a persistent SMTP session (STARTTLS).
	TransportSMTP TransportType = "smtp"

	// TransportAWSSES delivers through Amazon Simple Email Service.
	TransportAWSSES TransportType = "aws_ses"

	// TransportSendGrid delivers through the SendGrid API.
	TransportSendGrid TransportType = "sendgrid"

	// TransportMailgun delivers through the Mailgun API.
	TransportMailgun TransportType = "mailgun"

	// TransportStdout prints envelopes instead of delivering them.
	TransportStdout TransportType = "stdout"
)

// String returns the string representation of the transport type.
func (t TransportType) String() string {
	return string(t)
}

// Valid checks if the transport type is supported.
func (t TransportType) Valid() bool {
	switch t {
	case TransportSMTP, TransportAWSSES, TransportSendGrid, TransportMailgun, TransportStdout:
		return true
	default:
		return false
	}
}

// ServerConfig holds the delivery server configuration. It is constructed
// once before a run and shared read-only by every worker.
type ServerConfig struct {
	// Hostname is the SMTP server host.
	Hostname string `toml:"hostname" yaml:"hostname"`

	// Port is the SMTP server port.
	Port int `toml:"port" yaml:"port"`

	// Username authenticates the SMTP session.
	Username string `toml:"username" yaml:"username"`

	// Password authenticates the SMTP session.
	Password string `toml:"password" yaml:"password"`

	// Workers is the number of concurrent sender workers (default 1).
	Workers int `toml:"parallel_workers" yaml:"parallel_workers"`

	// Transport selects the delivery backend (default "smtp").
	Transport TransportType `toml:"transport" yaml:"transport"`

	// Settings carries extra transport-specific settings, e.g. "region"
	// for aws_ses or "api_key" and "domain" for mailgun.
	Settings core.Settings `toml:"settings" yaml:"settings"`
}

// Addr returns the host:port address of the SMTP server.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// applyDefaults sets the documented default values on unset fields.
func (c *ServerConfig) applyDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Transport == "" {
		c.Transport = TransportSMTP
	}
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty variables override; this keeps credentials out of files.
func (c *ServerConfig) applyEnvVars() {
	if v := os.Getenv("MASSMAIL_HOSTNAME"); v != "" {
		c.Hostname = v
	}
	if v := os.Getenv("MASSMAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("MASSMAIL_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("MASSMAIL_PASSWORD"); v != "" {
		c.Password = v
	}
}

// Validate checks if the configuration is valid and complete. SMTP-specific
// requirements only apply to the SMTP transport; the API transports validate
// their own settings at construction.
func (c *ServerConfig) Validate() error {
	if !c.Transport.Valid() {
		return &ValidationError{
			Field:   "transport",
			Message: "invalid or unsupported transport type: " + string(c.Transport),
		}
	}

	if c.Workers < 1 {
		return &ValidationError{
			Field:   "parallel_workers",
			Message: "worker count must be at least 1",
		}
	}

	if c.Transport == TransportSMTP {
		if c.Hostname == "" {
			return &ValidationError{Field: "hostname", Message: "hostname is required"}
		}
		if c.Port < 1 || c.Port > 65535 {
			return &ValidationError{
				Field:   "port",
				Message: "port must be between 1 and 65535",
				Value:   c.Port,
			}
		}
		if c.Username == "" {
			return &ValidationError{Field: "username", Message: "username is required"}
		}
		if c.Password == "" {
			return &ValidationError{Field: "password", Message: "password is required"}
		}
	}

	return nil
}

// Message is the campaign message. Immutable and shared read-only by all
// workers; the body template source is parsed once by the Dispatcher, not
// per send.
type Message struct {
	// Subject is the subject line, identical for every recipient.
	Subject string `toml:"subject" yaml:"subject"`

	// From is the sender address placed on every envelope.
	From string `toml:"from" yaml:"from"`

	// Body is the plain-text body template source. The recipient's fields
	// are addressable as {{.recipient.<field>}}.
	Body string `toml:"body" yaml:"body"`

	// ReplyTo is optional; when empty no Reply-To header is set.
	ReplyTo string `toml:"reply_to" yaml:"reply_to"`

	// Filters optionally restricts which recipients receive the message.
	Filters *FilterSpec `toml:"filters" yaml:"filters"`
}

// Validate checks if the message carries the required fields.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Subject) == "" {
		return &ValidationError{Field: "subject", Message: "subject is required"}
	}
	if m.From == "" {
		return &ValidationError{Field: "from", Message: "from is required"}
	}
	if !ValidAddress(m.From) {
		return &ValidationError{
			Field:   "from",
			Message: "not a valid-looking address",
			Value:   m.From,
		}
	}
	if strings.TrimSpace(m.Body) == "" {
		return &ValidationError{Field: "body", Message: "body is required"}
	}
	return nil
}

// Compose builds the envelope for one recipient from the already rendered
// body. The Reply-To header is set only when the message carries one.
func (m *Message) Compose(r core.Recipient, body string) *core.Envelope {
	return &core.Envelope{
		To:      r.Email(),
		From:    m.From,
		ReplyTo: m.ReplyTo,
		Subject: m.Subject,
		Body:    body,
	}
}

// Preview writes the campaign message between banner lines, body template
// unrendered, the way an operator inspects it before confirming a run.
func (m *Message) Preview(w io.Writer) {
	fmt.Fprintf(w, "==== BEGIN MESSAGE ====\nSubject: %s\nFrom: %s\n\n%s\n==== END MESSAGE ====\n",
		m.Subject, m.From, m.Body)
}

// FilterSpec declares which recipient records to drop before dispatch.
type FilterSpec struct {
	// DropEmpty lists fields whose trimmed value must be non-empty; a
	// record carrying such a field blank is dropped.
	DropEmpty []string `toml:"drop_empty" yaml:"drop_empty"`

	// DropNonEmpty lists fields whose trimmed value must be empty; a
	// record carrying such a field non-blank is dropped.
	DropNonEmpty []string `toml:"drop_nonempty" yaml:"drop_nonempty"`
}

// LoadServerConfig reads, layers, and validates a server configuration file.
// The decoder follows the file extension: .yaml/.yml is YAML, everything
// else TOML. MASSMAIL_HOSTNAME, MASSMAIL_PORT, MASSMAIL_USERNAME and
// MASSMAIL_PASSWORD environment variables override file values.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	cfg.applyDefaults()

	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadMessage reads and validates a message file. The decoder follows the
// file extension the same way LoadServerConfig does.
func LoadMessage(path string) (*Message, error) {
	msg := &Message{}

	if err := decodeFile(path, msg); err != nil {
		return nil, err
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// decodeFile unmarshals path into v, selecting the decoder by extension.
func decodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	return nil
}
