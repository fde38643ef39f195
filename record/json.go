package record

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// jsonSource reads a structured-text document holding one record object
// or an array of record objects. Array elements are decoded one at a
// time, so a large batch never materializes fully.
type jsonSource struct {
	f      *os.File
	dec    *json.Decoder
	name   string
	target string
	array  bool
	done   bool
	row    int
}

func openJSON(path, target string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.NewParseError(path, 0, "cannot open source: "+err.Error())
	}

	dec := json.NewDecoder(bufio.NewReader(f))
	s := &jsonSource{f: f, dec: dec, name: path, target: target}

	tok, err := dec.Token()
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "unreadable JSON: "+err.Error())
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "top-level JSON value is neither an object nor an array")
	}

	switch delim {
	case '[':
		s.array = true
	case '{':
		// Re-open as a whole-document decode; the opening brace was consumed.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, pkgerrors.NewParseError(path, 0, "cannot rewind source: "+err.Error())
		}
		s.dec = json.NewDecoder(bufio.NewReader(f))
	default:
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "top-level JSON value is neither an object nor an array")
	}

	return s, nil
}

func (s *jsonSource) next() (*CustomerRecord, error) {
	if s.done {
		return nil, io.EOF
	}

	if !s.array {
		s.done = true
		var raw json.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			return nil, pkgerrors.NewParseError(s.name, 0, "truncated or invalid JSON: "+err.Error())
		}
		s.row++
		return s.build(raw)
	}

	if !s.dec.More() {
		if _, err := s.dec.Token(); err != nil {
			return nil, pkgerrors.NewParseError(s.name, s.row, "truncated JSON array: "+err.Error())
		}
		s.done = true
		return nil, io.EOF
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		// A broken element leaves the decoder unusable; terminal.
		return nil, pkgerrors.NewParseError(s.name, s.row+1, "invalid JSON element: "+err.Error())
	}
	s.row++
	return s.build(raw)
}

// build converts one decoded object, enforcing the label-leakage and
// required-field invariants before the typed unmarshal.
func (s *jsonSource) build(raw json.RawMessage) (*CustomerRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &RowError{Row: s.row, Err: pkgerrors.NewParseError(s.name, s.row, "element is not an object")}
	}

	if s.target != "" {
		if _, ok := obj[s.target]; ok {
			// Ground truth in prediction input aborts the whole file.
			return nil, pkgerrors.NewValidationError(s.target,
				"input source exposes the training label column; prediction input must not contain ground truth", s.name)
		}
	}

	for _, field := range RequiredFields {
		if _, ok := obj[field]; !ok {
			return nil, &RowError{
				Row:        s.row,
				CustomerID: jsonID(obj),
				Err:        pkgerrors.NewValidationError(field, "required field is missing", nil),
			}
		}
	}

	var rec CustomerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &RowError{
			Row:        s.row,
			CustomerID: jsonID(obj),
			Err:        pkgerrors.NewParseError(s.name, s.row, "type mismatch: "+err.Error()),
		}
	}
	if err := rec.Validate(); err != nil {
		return nil, &RowError{Row: s.row, CustomerID: rec.CustomerID, Err: err}
	}
	return &rec, nil
}

func (s *jsonSource) close() error { return s.f.Close() }

func jsonID(obj map[string]json.RawMessage) string {
	raw, ok := obj[IDField]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}
