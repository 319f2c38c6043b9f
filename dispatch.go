package massmail

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mailfan/massmail/internal/core"
	"github.com/mailfan/massmail/internal/transport/mailgun"
	"github.com/mailfan/massmail/internal/transport/sendgrid"
	"github.com/mailfan/massmail/internal/transport/ses"
	"github.com/mailfan/massmail/internal/transport/smtp"
	"github.com/mailfan/massmail/internal/transport/stdout"
)

// Type aliases to re-export core types for the public API.
// This allows users to access types like massmail.Envelope instead of
// core.Envelope, maintaining a clean public interface while keeping
// implementation details internal.
type (
	Transport       = core.Transport
	Conn            = core.Conn
	Settings        = core.Settings
	Record          = core.Record
	Recipient       = core.Recipient
	Envelope        = core.Envelope
	SendOutcome     = core.SendOutcome
	Report          = core.Report
	ValidationError = core.ValidationError
	TransportError  = core.TransportError
)

// Error constructor functions
var (
	NewValidationError          = core.NewValidationError
	NewValidationErrorWithValue = core.NewValidationErrorWithValue
	NewTransportError           = core.NewTransportError
	WrapTransportError          = core.WrapTransportError
	AsTransportError            = core.AsTransportError
)

// Dispatcher implements the Sender interface. It fans one campaign message
// out to a pool of workers, each holding its own transport connection, and
// aggregates every delivery outcome into a report.
type Dispatcher struct {
	cfg       ServerConfig
	msg       *Message
	transport Transport
	renderer  Renderer
	queueCap  int
	log       *slog.Logger
	tracer    trace.Tracer
}

// New creates a dispatcher for one campaign message. The message body is
// parsed into a template once, here, so a broken template fails the run
// before any connection is opened.
func New(cfg ServerConfig, msg *Message, opts ...Option) (*Dispatcher, error) {
	cfg.applyDefaults()

	d := &Dispatcher{
		cfg:      cfg,
		msg:      msg,
		queueCap: DefaultQueueCapacity,
		log:      slog.Default(),
		tracer:   otel.Tracer("github.com/mailfan/massmail"),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.msg == nil {
		return nil, NewValidationError("message", "message is required")
	}
	if err := d.msg.Validate(); err != nil {
		return nil, err
	}
	if d.cfg.Workers < 1 {
		return nil, NewValidationError("parallel_workers", "worker count must be at least 1")
	}
	if d.queueCap < 1 {
		return nil, NewValidationError("queue_capacity", "queue capacity must be at least 1")
	}

	if d.renderer == nil {
		tmpl, err := NewBodyTemplate(d.msg.Body)
		if err != nil {
			return nil, err
		}
		d.renderer = tmpl
	}

	// Only consult the server configuration when no transport instance
	// was supplied directly.
	if d.transport == nil {
		if err := d.cfg.Validate(); err != nil {
			return nil, err
		}
		t, err := newTransport(&d.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		d.transport = t
	}

	return d, nil
}

// Screen applies the message's filter rules to raw records and returns the
// recipients the campaign will actually address, in input order.
func (d *Dispatcher) Screen(recs []Record) []Recipient {
	return NewFilter(d.msg.Filters, d.log).ScreenAll(recs)
}

// Run delivers the campaign message to every given recipient and blocks
// until each one has an outcome. Per-recipient failures are recorded in the
// report, never returned as the error; a non-nil error means the run as a
// whole could not proceed (cancellation, or no worker obtained a
// connection) and the report then carries a failed outcome for every
// undelivered recipient.
func (d *Dispatcher) Run(ctx context.Context, recipients []Recipient) (*Report, error) {
	ctx, span := d.tracer.Start(ctx, "massmail.Dispatcher.Run")
	defer span.End()

	if d.transport == nil {
		span.RecordError(ErrNilTransport)
		span.SetStatus(codes.Error, ErrNilTransport.Error())
		return nil, ErrNilTransport
	}

	workers := d.cfg.Workers

	span.SetAttributes(
		attribute.Int("massmail.recipients", len(recipients)),
		attribute.Int("massmail.workers", workers),
		attribute.Int("massmail.queue_capacity", d.queueCap),
		attribute.String("massmail.transport", d.transport.Name()),
	)

	report := &Report{}
	if len(recipients) == 0 {
		span.SetStatus(codes.Ok, "no recipients")
		return report, nil
	}

	// The queue bound is what keeps a large recipient list from being
	// loaded into flight all at once; the feeder blocks when workers
	// fall behind.
	queue := make(chan Recipient, d.queueCap)
	outcomes := make(chan SendOutcome, workers)

	var wg sync.WaitGroup
	var connected atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.worker(ctx, id, queue, outcomes, &connected)
		}(i)
	}

	// Closed when the last worker exits. The feeder selects on this so a
	// run whose workers all die early cannot block forever on a full
	// queue.
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	// Collector. A single goroutine owns the report until the outcome
	// channel closes.
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for o := range outcomes {
			report.Add(o)
		}
	}()

	fed := 0
feed:
	for _, r := range recipients {
		select {
		case queue <- r:
			fed++
		case <-workersDone:
			break feed
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)

	<-workersDone

	// Account for everything no worker will ever take: recipients left on
	// the closed queue and the tail that was never fed. The report must
	// carry one outcome per recipient no matter how the run ended.
	cause := ctx.Err()
	if cause == nil {
		cause = ErrNoWorkers
	}
	for r := range queue {
		outcomes <- SendOutcome{Email: r.Email(), Err: cause}
	}
	for _, r := range recipients[fed:] {
		outcomes <- SendOutcome{Email: r.Email(), Err: cause}
	}

	close(outcomes)
	<-collected

	span.SetAttributes(
		attribute.Int("massmail.delivered", report.Delivered),
		attribute.Int("massmail.failed", report.Failed),
	)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run cancelled")
		return report, err
	}
	if connected.Load() == 0 {
		span.RecordError(ErrNoWorkers)
		span.SetStatus(codes.Error, ErrNoWorkers.Error())
		return report, ErrNoWorkers
	}

	span.SetStatus(codes.Ok, "run completed")
	return report, nil
}

// worker takes recipients off the queue until it closes or the context is
// cancelled. The transport connection is acquired once and held for the
// worker's whole lifetime; failing to acquire one is fatal to this worker
// only, and it exits without consuming recipients other workers could
// still deliver to.
func (d *Dispatcher) worker(ctx context.Context, id int, queue <-chan Recipient, outcomes chan<- SendOutcome, connected *atomic.Int32) {
	log := d.log.With(slog.Int("worker", id))

	conn, err := d.transport.Connect(ctx)
	if err != nil {
		log.Error("failed to connect delivery transport",
			slog.String("transport", d.transport.Name()),
			slog.Any("error", err))
		return
	}
	connected.Add(1)
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("failed to close transport connection", slog.Any("error", err))
		}
	}()

	log.Debug("worker connected", slog.String("transport", d.transport.Name()))

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-queue:
			if !ok {
				return
			}
			outcomes <- d.deliver(ctx, log, conn, r)
		}
	}
}

// deliver renders, composes and sends the message for one recipient. A
// render failure counts as a failed delivery for that recipient; nothing
// reaches the transport for it.
func (d *Dispatcher) deliver(ctx context.Context, log *slog.Logger, conn Conn, r Recipient) SendOutcome {
	email := r.Email()

	ctx, span := d.tracer.Start(ctx, "massmail.Dispatcher.deliver",
		trace.WithAttributes(
			attribute.String("massmail.to", email),
			attribute.String("massmail.transport", d.transport.Name()),
		),
	)
	defer span.End()

	body, err := d.renderer.Render(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		log.Warn("failed to render message body",
			slog.String("to", email),
			slog.Any("error", err))
		return SendOutcome{Email: email, Err: err}
	}

	env := d.msg.Compose(r, body)

	start := time.Now()
	err = conn.Send(ctx, env)
	span.SetAttributes(attribute.Int64("massmail.duration_ms", time.Since(start).Milliseconds()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		log.Warn("failed to send message",
			slog.String("to", email),
			slog.Any("error", err))
		return SendOutcome{Email: email, Err: err}
	}

	span.SetStatus(codes.Ok, "message sent")
	log.Info("message sent", slog.String("to", email))
	return SendOutcome{Email: email, Success: true}
}

// newTransport creates a transport instance based on the configured type
// and settings.
func newTransport(cfg *ServerConfig) (Transport, error) {
	switch cfg.Transport {
	case TransportSMTP:
		return smtp.New(smtpSettings(cfg))
	case TransportAWSSES:
		return ses.New(cfg.Settings)
	case TransportSendGrid:
		return sendgrid.New(cfg.Settings)
	case TransportMailgun:
		return mailgun.New(cfg.Settings)
	case TransportStdout:
		return stdout.New(), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport)
	}
}

// smtpSettings folds the top-level SMTP fields of the server configuration
// into the settings map the SMTP transport is built from. Extra settings,
// such as "helo_hostname", pass through untouched.
func smtpSettings(cfg *ServerConfig) core.Settings {
	s := make(core.Settings, len(cfg.Settings)+4)
	for k, v := range cfg.Settings {
		s[k] = v
	}
	s.Set("host", cfg.Hostname)
	s.Set("port", strconv.Itoa(cfg.Port))
	s.Set("username", cfg.Username)
	s.Set("password", cfg.Password)
	return s
}
