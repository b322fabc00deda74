package runner

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadNames reads the name column of a CSV file. column is zero-based;
// when hasHeader is set the first record is discarded.
func ReadNames(path string, column int, hasHeader bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are fine, we only want one column

	var names []string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if first && hasHeader {
			first = false
			continue
		}
		first = false
		if column < len(rec) {
			names = append(names, strings.TrimSpace(rec[column]))
		} else {
			names = append(names, "")
		}
	}
	return names, nil
}

// CSVSink streams outcomes to a CSV file, one row per name.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink creates the output file and writes the header row.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"name", "email", "status", "alternates", "confidence"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &CSVSink{f: f, w: w}, nil
}

// WriteOutcome appends one outcome row.
func (s *CSVSink) WriteOutcome(_ context.Context, _ int, name string, out RowOutcome) error {
	return s.w.Write([]string{name, out.Email, out.Status, out.Alternates, out.Confidence})
}

// Close flushes and closes the output file.
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
