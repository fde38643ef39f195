package record

import (
	"fmt"
	"io"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// RowError is a recoverable, row-scoped failure inside a batch: the row
// at fault is reported without re-parsing the source or stopping the
// remaining records.
type RowError struct {
	Row        int    // 1-based data row
	CustomerID string // empty when the row never yielded an identifier
	Err        error
}

func (e *RowError) Error() string {
	if e.CustomerID != "" {
		return fmt.Sprintf("record %s (row %d): %v", e.CustomerID, e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// source is a forward-only record producer. next returns io.EOF at the
// end, a *RowError for a recoverable row failure, and any other error as
// a terminal stream failure.
type source interface {
	next() (*CustomerRecord, error)
	close() error
}

// Stream is a lazy, finite, non-restartable sequence of validated
// CustomerRecords. A caller can begin scoring before the whole source is
// materialized; malformed rows surface through RowErr without aborting
// the stream.
//
//	for stream.Next() {
//	    if rowErr := stream.RowErr(); rowErr != nil { ... continue }
//	    rec := stream.Record()
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream struct {
	src     source
	cur     *CustomerRecord
	rowErr  *RowError
	err     error
	done    bool
	row     int
	seenIDs map[string]bool // batch mode: identifier uniqueness
}

// Next advances to the next row. It returns true when either a valid
// record or a row-scoped failure is available, false at the end of the
// source or on a terminal error.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	s.cur, s.rowErr = nil, nil

	rec, err := s.src.next()
	switch {
	case err == nil:
		s.row++
		if s.seenIDs != nil {
			if s.seenIDs[rec.CustomerID] {
				s.rowErr = &RowError{
					Row:        s.row,
					CustomerID: rec.CustomerID,
					Err:        pkgerrors.NewValidationError(IDField, "duplicate identifier within batch", rec.CustomerID),
				}
				return true
			}
			s.seenIDs[rec.CustomerID] = true
		}
		s.cur = rec
		return true
	case pkgerrors.Is(err, io.EOF):
		s.finish()
		return false
	default:
		var rowErr *RowError
		if pkgerrors.As(err, &rowErr) {
			s.row = rowErr.Row
			s.rowErr = rowErr
			return true
		}
		s.err = err
		s.finish()
		return false
	}
}

// Record returns the current valid record, nil when the current row failed.
func (s *Stream) Record() *CustomerRecord { return s.cur }

// RowErr returns the current row's failure, nil when the row is valid.
func (s *Stream) RowErr() *RowError { return s.rowErr }

// Err returns the terminal stream error, if any, once Next returned false.
func (s *Stream) Err() error { return s.err }

// Close releases the underlying source early.
func (s *Stream) Close() error {
	if !s.done {
		s.finish()
	}
	return nil
}

func (s *Stream) finish() {
	s.done = true
	if s.src != nil {
		_ = s.src.close()
	}
}

// sliceSource replays pre-materialized rows; used for single mode where
// the record count must be verified eagerly.
type sliceSource struct {
	recs []*CustomerRecord
	pos  int
}

func (s *sliceSource) next() (*CustomerRecord, error) {
	if s.pos >= len(s.recs) {
		return nil, io.EOF
	}
	rec := s.recs[s.pos]
	s.pos++
	return rec, nil
}

func (s *sliceSource) close() error { return nil }
