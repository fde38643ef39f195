package record

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

// Mode selects how many records the source must yield.
type Mode string

const (
	// ModeSingle requires the source to yield exactly one record.
	ModeSingle Mode = "single"
	// ModeBatch accepts one-to-many records, validated independently.
	ModeBatch Mode = "batch"
)

// Open parses an input source into a record stream. The encoding is
// detected by file extension with a content sniff fallback; supported
// encodings are delimited-text tables (.csv), spreadsheet workbooks
// (.xlsx/.xls, first sheet), and structured-text documents (.json, one
// object or an array of objects).
//
// target is the training label column from the encoder artifact; a
// source exposing it is rejected immediately, since feeding labeled
// training data to the inference path is almost certainly a caller
// mistake. Columns outside the required field set are tolerated and
// ignored.
func Open(path string, mode Mode, target string) (*Stream, error) {
	if mode != ModeSingle && mode != ModeBatch {
		return nil, pkgerrors.NewUsageError("record.Open", "unknown mode "+string(mode))
	}

	src, err := openSource(path, target)
	if err != nil {
		return nil, err
	}

	if mode == ModeSingle {
		return openSingle(path, src)
	}
	return &Stream{src: src, seenIDs: make(map[string]bool)}, nil
}

// LoadSingle opens a source in single mode and returns its one record.
func LoadSingle(path, target string) (*CustomerRecord, error) {
	stream, err := Open(path, ModeSingle, target)
	if err != nil {
		return nil, err
	}
	stream.Next()
	return stream.Record(), stream.Err()
}

// openSingle materializes the source eagerly: zero records, more than
// one record, and any row failure are all fatal in single mode.
func openSingle(path string, src source) (*Stream, error) {
	defer func() { _ = src.close() }()

	first, err := src.next()
	if err != nil {
		if pkgerrors.Is(err, io.EOF) {
			return nil, pkgerrors.NewUsageError("record.Open", "single mode source "+path+" yielded no records")
		}
		return nil, err
	}

	if _, err := src.next(); !pkgerrors.Is(err, io.EOF) {
		var rowErr *RowError
		if err == nil || pkgerrors.As(err, &rowErr) {
			return nil, pkgerrors.NewUsageError("record.Open", "single mode source "+path+" yielded more than one record")
		}
		return nil, err
	}

	return &Stream{src: &sliceSource{recs: []*CustomerRecord{first}}}, nil
}

func openSource(path, target string) (source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return openCSV(path, target)
	case ".xlsx", ".xls":
		return openWorkbook(path, target)
	case ".json":
		return openJSON(path, target)
	}
	return sniffSource(path, target)
}

// sniffSource falls back to content detection for unknown extensions.
func sniffSource(path, target string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.NewParseError(path, 0, "cannot open source: "+err.Error())
	}
	head := make([]byte, 1)
	for {
		if _, err := f.Read(head); err != nil {
			_ = f.Close()
			return nil, pkgerrors.NewParseError(path, 0, "empty or unreadable source")
		}
		if !isSpace(head[0]) {
			break
		}
	}
	_ = f.Close()

	switch head[0] {
	case '{', '[':
		return openJSON(path, target)
	default:
		return openCSV(path, target)
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// indexHeader validates a tabular header against the required field set
// and rejects the target label column.
func indexHeader(sourceName string, cols []string, target string) (map[string]int, error) {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		name := strings.TrimSpace(c)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		idx[name] = i
	}

	if target != "" {
		if _, ok := idx[target]; ok {
			return nil, pkgerrors.NewValidationError(target,
				"input source exposes the training label column; prediction input must not contain ground truth", sourceName)
		}
	}

	var missing []string
	for _, field := range RequiredFields {
		if _, ok := idx[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.NewParseError(sourceName, 0,
			"schema mismatch, missing columns: "+strings.Join(missing, ", "))
	}
	return idx, nil
}

// csvSource reads a delimited-text table row by row.
type csvSource struct {
	f      *os.File
	r      *csv.Reader
	header map[string]int
	name   string
	row    int // 1-based data row
}

func openCSV(path, target string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.NewParseError(path, 0, "cannot open source: "+err.Error())
	}

	r := csv.NewReader(bufio.NewReader(f))
	r.TrimLeadingSpace = true

	headerRow, err := r.Read()
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.NewParseError(path, 0, "cannot read header: "+err.Error())
	}
	header, err := indexHeader(path, headerRow, target)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &csvSource{f: f, r: r, header: header, name: path}, nil
}

func (s *csvSource) next() (*CustomerRecord, error) {
	row, err := s.r.Read()
	if err != nil {
		if pkgerrors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		s.row++
		if pkgerrors.Is(err, csv.ErrFieldCount) {
			// The reader can continue past a short or long row.
			return nil, &RowError{Row: s.row, Err: pkgerrors.NewParseError(s.name, s.row, "wrong field count")}
		}
		return nil, pkgerrors.NewParseError(s.name, s.row, err.Error())
	}
	s.row++

	rec, err := fromRow(s.header, row)
	if err != nil {
		return nil, &RowError{Row: s.row, CustomerID: cellValue(s.header, row, IDField), Err: err}
	}
	return rec, nil
}

func (s *csvSource) close() error { return s.f.Close() }

func cellValue(header map[string]int, row []string, field string) string {
	if i, ok := header[field]; ok && i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
