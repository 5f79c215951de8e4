package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/stevemurr/jsonsqlite/document"
	"github.com/stevemurr/jsonsqlite/schema"
)

// Format is the shape of an input stream.
type Format string

const (
	// FormatArray is a single JSON array whose elements are the records.
	FormatArray Format = "array"
	// FormatLines is newline-delimited JSON, one record per line.
	FormatLines Format = "lines"
)

// DetectFormat peeks at the first non-whitespace byte of br: '[' means
// FormatArray, anything else (including empty input) FormatLines. Leading
// whitespace is consumed; the first significant byte is not.
func DetectFormat(br *bufio.Reader) (Format, error) {
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return FormatLines, nil
		}
		if err != nil {
			return "", err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return "", err
		}
		if b == '[' {
			return FormatArray, nil
		}
		return FormatLines, nil
	}
}

// record is one input record. err is set when the record could not be
// parsed or is not an object; such records are never written.
type record struct {
	pos int
	doc document.Value
	err error
}

func newRecord(pos int, doc document.Value, err error) record {
	if err == nil && doc.Kind() != document.Object {
		err = fmt.Errorf("%w: got %s", schema.ErrNotObject, doc.Kind())
	}
	return record{pos: pos, doc: doc, err: err}
}

// source yields the records of an input, in order, each time each is
// called. Both passes of an ingestion see the same records.
type source interface {
	// unit names a position in log entries: "record" or "line".
	unit() string
	each(fn func(rec record) error) error
}

type arraySource struct {
	records []record
}

// newArraySource parses the whole input as one JSON array. A failure here
// is fatal to the run.
func newArraySource(r io.Reader, p *document.Parser) (*arraySource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read array input: %w", err)
	}
	docs, err := p.ParseArray(data)
	if err != nil {
		return nil, fmt.Errorf("parse array input: %w", err)
	}
	src := &arraySource{records: make([]record, len(docs))}
	for i, doc := range docs {
		src.records[i] = newRecord(i+1, doc, nil)
	}
	return src, nil
}

func (s *arraySource) unit() string { return "record" }

func (s *arraySource) each(fn func(rec record) error) error {
	for _, rec := range s.records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// ErrLineTooLong marks a line longer than the configured maximum. The line
// is skipped; the records after it are still read.
var ErrLineTooLong = errors.New("line too long")

// lineSource streams newline-delimited records. Each pass rewinds the input
// and parses every line again. Blank lines are not records.
type lineSource struct {
	r           io.ReadSeeker
	parser      *document.Parser
	maxLineSize int
}

func (s *lineSource) unit() string { return "line" }

func (s *lineSource) each(fn func(rec record) error) error {
	if _, err := s.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind input: %w", err)
	}
	br := bufio.NewReaderSize(s.r, 64*1024)
	var buf []byte
	line := 0
	for {
		data, size, err := readLine(br, buf[:0], s.maxLineSize)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", line+1, err)
		}
		buf = data
		line++
		if size > s.maxLineSize {
			err := fmt.Errorf("%w: %d bytes, limit %d", ErrLineTooLong, size, s.maxLineSize)
			if err := fn(record{pos: line, err: err}); err != nil {
				return err
			}
			continue
		}
		text := bytes.TrimSpace(data)
		if len(text) == 0 {
			continue
		}
		doc, err := s.parser.Parse(text)
		if err := fn(newRecord(line, doc, err)); err != nil {
			return err
		}
	}
}

// readLine reads the next line into buf, without its newline, and returns
// it with the line's full size. Once a line grows past limit the rest of it
// is read and discarded, so only its size is returned. io.EOF is returned
// only when no bytes are left.
func readLine(br *bufio.Reader, buf []byte, limit int) ([]byte, int, error) {
	size := 0
	read := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		chunk = bytes.TrimSuffix(chunk, []byte{'\n'})
		size += len(chunk)
		if size <= limit {
			buf = append(buf, chunk...)
		} else {
			buf = buf[:0]
		}
		switch {
		case err == nil:
			return buf, size, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF && read:
			return buf, size, nil
		default:
			return buf, size, err
		}
	}
}
