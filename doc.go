// Package massmail sends one campaign message to every address in a
// recipient list.
//
// A campaign is three inputs: a server configuration, a message whose body
// is a template, and a CSV recipient list whose header names the fields
// each row carries. The dispatcher screens the list against the message's
// filter rules, renders the body per recipient, and fans deliveries out to
// a pool of workers over a bounded queue. Each worker holds its own
// transport connection for its whole lifetime, and every recipient ends up
// with exactly one outcome in the final report, however the run ends.
//
// # Basic Usage
//
//	cfg, err := massmail.LoadServerConfig("config.toml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	msg, err := massmail.LoadMessage("message.toml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	recs, err := massmail.LoadRecipients("recipients.csv")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	d, err := massmail.New(*cfg, msg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	report, err := d.Run(context.Background(), d.Screen(recs))
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("delivered %d of %d\n", report.Delivered, report.Total)
//
// # Supported Transports
//
//   - Generic SMTP with STARTTLS
//   - AWS SES
//   - SendGrid
//   - Mailgun
//   - Standard output for dry runs
//
// # Features
//
//   - Bounded dispatch queue, decoupled from the worker count
//   - One transport connection per worker, held for the worker's lifetime
//   - Per-recipient outcomes; one bad address never aborts a run
//   - Field-based recipient screening (drop_empty / drop_nonempty rules)
//   - Body personalization backed by text/template
//   - Distributed tracing with OpenTelemetry
//   - Context-aware operations
package massmail
