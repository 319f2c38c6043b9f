package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mailfan/massmail/internal/core"
)

// Transport implements the core.Transport interface by printing every
// envelope instead of delivering it. It backs dry runs.
type Transport struct {
	mu sync.Mutex
	w  io.Writer
}

// New creates a transport that prints envelopes to standard output.
func New() *Transport {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a transport that prints envelopes to w.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{w: w}
}

// Connect returns a printing handle. All handles share one lock so
// concurrent workers never interleave envelopes.
func (t *Transport) Connect(ctx context.Context) (core.Conn, error) {
	return &Conn{transport: t}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}

// Conn prints envelopes through the shared writer.
type Conn struct {
	transport *Transport
}

// Send prints one envelope.
func (c *Conn) Send(ctx context.Context, env *core.Envelope) error {
	var b strings.Builder

	b.WriteString("==== BEGIN ENVELOPE ====\n")
	b.WriteString("To: " + env.To + "\n")
	b.WriteString("From: " + env.From + "\n")
	if env.ReplyTo != "" {
		b.WriteString("Reply-To: " + env.ReplyTo + "\n")
	}
	b.WriteString("Subject: " + env.Subject + "\n")
	b.WriteString("\n")
	b.WriteString(env.Body)
	b.WriteString("\n==== END ENVELOPE ====\n")

	t := c.transport
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprint(t.w, b.String()); err != nil {
		return core.NewTransportError("stdout", "write", err.Error())
	}

	return nil
}

// Close is a no-op; the writer outlives the connection.
func (c *Conn) Close() error {
	return nil
}
