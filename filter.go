package massmail

import (
	"log/slog"
	"strings"

	"github.com/mailfan/massmail/internal/core"
)

// ValidAddress reports whether addr looks like local@domain.tld in the
// crudest sense: exactly one "@" with a non-empty local part, and a domain
// containing a dot with at least one character on each side. Deliberately
// permissive; it only catches obviously malformed addresses, not RFC 5322
// violations.
func ValidAddress(addr string) bool {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	if len(domain) < 3 {
		return false
	}
	return strings.Contains(domain[1:len(domain)-1], ".")
}

// Filter screens raw recipient records before they enter the dispatch queue.
// A nil rule set means only the address check applies.
type Filter struct {
	rules *FilterSpec
	log   *slog.Logger
}

// NewFilter creates a filter for the given rules. A nil logger falls back to
// slog.Default().
func NewFilter(rules *FilterSpec, log *slog.Logger) *Filter {
	if log == nil {
		log = slog.Default()
	}
	return &Filter{rules: rules, log: log}
}

// Screen validates the record's address and applies the drop rules. The
// returned bool reports whether the record survived; surviving records pass
// through unchanged. A rejected record is logged, never an error: one bad
// row must not abort a run.
func (f *Filter) Screen(rec core.Record) (core.Recipient, bool) {
	if !ValidAddress(rec.Email()) {
		f.log.Warn("not a valid-looking email address, skipping",
			slog.String("email", rec.Email()))
		return nil, false
	}

	if f.rules == nil {
		return rec, true
	}

	for _, field := range f.rules.DropEmpty {
		if !rec.Has(field) {
			f.log.Warn("drop_empty references a field the record does not carry",
				slog.String("field", field), slog.String("email", rec.Email()))
			continue
		}
		if strings.TrimSpace(rec.Get(field)) == "" {
			f.log.Debug("dropping recipient: field empty",
				slog.String("email", rec.Email()), slog.String("field", field))
			return nil, false
		}
	}

	for _, field := range f.rules.DropNonEmpty {
		if !rec.Has(field) {
			f.log.Warn("drop_nonempty references a field the record does not carry",
				slog.String("field", field), slog.String("email", rec.Email()))
			continue
		}
		if strings.TrimSpace(rec.Get(field)) != "" {
			f.log.Debug("dropping recipient: field non-empty",
				slog.String("email", rec.Email()),
				slog.String("field", field),
				slog.String("value", rec.Get(field)))
			return nil, false
		}
	}

	return rec, true
}

// ScreenAll screens records in order and returns the survivors, preserving
// input order.
func (f *Filter) ScreenAll(recs []core.Record) []core.Recipient {
	kept := make([]core.Recipient, 0, len(recs))
	for _, rec := range recs {
		if r, ok := f.Screen(rec); ok {
			kept = append(kept, r)
		}
	}
	return kept
}
