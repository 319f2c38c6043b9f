package massmail

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadServerConfig_TOML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.toml", `
hostname = "smtp.example.com"
port = 587
username = "mailer"
password = "hunter2"
parallel_workers = 4
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com", cfg.Hostname)
	require.Equal(t, 587, cfg.Port)
	require.Equal(t, "mailer", cfg.Username)
	require.Equal(t, "hunter2", cfg.Password)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, TransportSMTP, cfg.Transport)
	require.Equal(t, "smtp.example.com:587", cfg.Addr())
}

func TestLoadServerConfig_YAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
hostname: smtp.example.com
port: 465
username: mailer
password: hunter2
transport: stdout
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com", cfg.Hostname)
	require.Equal(t, 465, cfg.Port)
	require.Equal(t, TransportStdout, cfg.Transport)
	require.Equal(t, 1, cfg.Workers)
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.toml", `
hostname = "smtp.example.com"
port = 587
username = "mailer"
password = "hunter2"
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultWorkers, cfg.Workers)
	require.Equal(t, TransportSMTP, cfg.Transport)
}

func TestLoadServerConfig_TransportSettings(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.toml", `
transport = "aws_ses"

[settings]
region = "eu-west-1"
configuration_set = "newsletter"
`)

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, TransportAWSSES, cfg.Transport)
	require.Equal(t, "eu-west-1", cfg.Settings.Get("region"))
	require.Equal(t, "newsletter", cfg.Settings.Get("configuration_set"))
}

func TestLoadServerConfig_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.toml", `
hostname = "smtp.example.com"
port = 587
username = "file-user"
password = "file-pass"
`)

	t.Setenv("MASSMAIL_HOSTNAME", "smtp.override.example.com")
	t.Setenv("MASSMAIL_PORT", "2525")
	t.Setenv("MASSMAIL_USERNAME", "env-user")
	t.Setenv("MASSMAIL_PASSWORD", "env-pass")

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "smtp.override.example.com", cfg.Hostname)
	require.Equal(t, 2525, cfg.Port)
	require.Equal(t, "env-user", cfg.Username)
	require.Equal(t, "env-pass", cfg.Password)
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadServerConfig_MalformedTOML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.toml", `hostname = `)
	_, err := LoadServerConfig(path)
	require.Error(t, err)
}

func TestServerConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() ServerConfig {
		return ServerConfig{
			Hostname:  "smtp.example.com",
			Port:      587,
			Username:  "mailer",
			Password:  "hunter2",
			Workers:   1,
			Transport: TransportSMTP,
		}
	}

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		field  string
	}{
		{name: "unknown transport", mutate: func(c *ServerConfig) { c.Transport = "carrier-pigeon" }, field: "transport"},
		{name: "zero workers", mutate: func(c *ServerConfig) { c.Workers = 0 }, field: "parallel_workers"},
		{name: "missing hostname", mutate: func(c *ServerConfig) { c.Hostname = "" }, field: "hostname"},
		{name: "zero port", mutate: func(c *ServerConfig) { c.Port = 0 }, field: "port"},
		{name: "port out of range", mutate: func(c *ServerConfig) { c.Port = 70000 }, field: "port"},
		{name: "missing username", mutate: func(c *ServerConfig) { c.Username = "" }, field: "username"},
		{name: "missing password", mutate: func(c *ServerConfig) { c.Password = "" }, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
}

func TestServerConfig_Validate_NonSMTPSkipsServerFields(t *testing.T) {
	t.Parallel()

	cfg := ServerConfig{Workers: 1, Transport: TransportStdout}
	require.NoError(t, cfg.Validate())
}

func TestTransportType_Valid(t *testing.T) {
	t.Parallel()

	for _, tt := range []TransportType{TransportSMTP, TransportAWSSES, TransportSendGrid, TransportMailgun, TransportStdout} {
		require.True(t, tt.Valid(), tt)
	}
	require.False(t, TransportType("").Valid())
	require.False(t, TransportType("carrier-pigeon").Valid())
}

func TestLoadMessage_TOML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "message.toml", `
subject = "March Newsletter"
from = "Newsletter Desk <news@example.com>"
reply_to = "support@example.com"
body = "Hi {{.recipient.firstname}},"

[filters]
drop_empty = ["firstname"]
drop_nonempty = ["unsubscribed"]
`)

	msg, err := LoadMessage(path)
	require.NoError(t, err)
	require.Equal(t, "March Newsletter", msg.Subject)
	require.Equal(t, "Newsletter Desk <news@example.com>", msg.From)
	require.Equal(t, "support@example.com", msg.ReplyTo)
	require.Equal(t, "Hi {{.recipient.firstname}},", msg.Body)
	require.NotNil(t, msg.Filters)
	require.Equal(t, []string{"firstname"}, msg.Filters.DropEmpty)
	require.Equal(t, []string{"unsubscribed"}, msg.Filters.DropNonEmpty)
}

func TestLoadMessage_NoFilters(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "message.toml", `
subject = "Plain"
from = "news@example.com"
body = "No filters attached."
`)

	msg, err := LoadMessage(path)
	require.NoError(t, err)
	require.Nil(t, msg.Filters)
	require.Empty(t, msg.ReplyTo)
}

func TestLoadMessage_Invalid(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "message.toml", `
from = "news@example.com"
body = "Body without a subject."
`)

	_, err := LoadMessage(path)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "subject", verr.Field)
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	valid := func() Message {
		return Message{Subject: "s", From: "news@example.com", Body: "b"}
	}

	tests := []struct {
		name   string
		mutate func(*Message)
		field  string
	}{
		{name: "missing subject", mutate: func(m *Message) { m.Subject = " " }, field: "subject"},
		{name: "missing from", mutate: func(m *Message) { m.From = "" }, field: "from"},
		{name: "malformed from", mutate: func(m *Message) { m.From = "not-an-address" }, field: "from"},
		{name: "missing body", mutate: func(m *Message) { m.Body = " " }, field: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := valid()
			tt.mutate(&msg)

			err := msg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}

	msg := valid()
	require.NoError(t, msg.Validate())
}

func TestMessage_Compose(t *testing.T) {
	t.Parallel()

	msg := &Message{Subject: "Hello", From: "news@example.com", ReplyTo: "support@example.com"}

	env := msg.Compose(Recipient{"email": "ann@example.com"}, "rendered body")
	require.Equal(t, "ann@example.com", env.To)
	require.Equal(t, "news@example.com", env.From)
	require.Equal(t, "support@example.com", env.ReplyTo)
	require.Equal(t, "Hello", env.Subject)
	require.Equal(t, "rendered body", env.Body)
}

func TestMessage_Compose_NoReplyTo(t *testing.T) {
	t.Parallel()

	msg := &Message{Subject: "Hello", From: "news@example.com"}

	env := msg.Compose(Recipient{"email": "ann@example.com"}, "x")
	require.Empty(t, env.ReplyTo)
}

func TestMessage_Preview(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Subject: "March Newsletter",
		From:    "news@example.com",
		Body:    "Hi {{.recipient.firstname}},",
	}

	var buf bytes.Buffer
	msg.Preview(&buf)

	want := "==== BEGIN MESSAGE ====\n" +
		"Subject: March Newsletter\n" +
		"From: news@example.com\n" +
		"\n" +
		"Hi {{.recipient.firstname}},\n" +
		"==== END MESSAGE ====\n"
	require.Equal(t, want, buf.String())
}
