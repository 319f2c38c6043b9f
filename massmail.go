package massmail

import (
	"context"
)

// Public interfaces for the dispatch library
type (
	// Sender runs one campaign against a recipient list.
	// Run blocks until every recipient has an outcome.
	Sender interface {
		// Run renders and delivers the campaign message to each given
		// recipient. Per-recipient failures are recorded in the report,
		// never returned as the error; the error is reserved for
		// whole-run conditions such as cancellation or every worker
		// failing to obtain a connection.
		Run(ctx context.Context, recipients []Recipient) (*Report, error)
	}

	// Renderer produces the personalized message body for one recipient.
	// Implementations must be safe for concurrent use; workers render
	// from multiple goroutines.
	Renderer interface {
		// Render returns the message body for one recipient.
		Render(r Recipient) (string, error)
	}
)
