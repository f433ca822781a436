package binlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader iterates the records of a binary latency log.
type Reader struct {
	r   *bufio.Reader
	rec [EntrySize]byte
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10)}
}

// Next returns the next record, io.EOF at a clean end, or ErrTruncatedLog
// if the stream ends inside a record.
func (r *Reader) Next() (Entry, error) {
	n, err := io.ReadFull(r.r, r.rec[:])
	switch {
	case err == nil:
		return ParseEntry(r.rec[:]), nil
	case errors.Is(err, io.EOF):
		return Entry{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Entry{}, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedLog, n)
	default:
		return Entry{}, fmt.Errorf("binlog: read: %w", err)
	}
}

// ReadFile loads every record in path. On ErrTruncatedLog the complete
// records read so far are returned with the error.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("binlog: open %s: %w", path, err)
	}
	defer f.Close()

	var out []Entry
	if fi, err := f.Stat(); err == nil {
		out = make([]Entry, 0, fi.Size()/EntrySize)
	}
	rd := NewReader(f)
	for {
		e, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
