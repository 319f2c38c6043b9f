package massmail

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/mailfan/massmail/internal/core"
)

// LoadRecipients reads a recipient list from a CSV file.
func LoadRecipients(path string) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	recs, err := ReadRecipients(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return recs, nil
}

// ReadRecipients decodes CSV rows into records. The first row is the header
// and every following row becomes one record keyed by the header fields, in
// file order. The header must carry an "email" column; a source without one
// cannot address anybody and is rejected with ErrMissingEmailColumn.
func ReadRecipients(r io.Reader) ([]core.Record, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingEmailColumn
	}
	if err != nil {
		return nil, err
	}

	found := false
	for _, name := range header {
		if name == "email" {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrMissingEmailColumn
	}

	var recs []core.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec := make(core.Record, len(header))
		for i, name := range header {
			rec[name] = row[i]
		}
		recs = append(recs, rec)
	}

	return recs, nil
}
