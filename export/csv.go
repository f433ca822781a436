// Package export turns a binary latency log into analysis artifacts: a CSV
// with one row per sample (optionally zstd-compressed) and a JSON summary
// of the latency distribution and sequence accounting.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"netlatlab/binlog"
)

// Header is the CSV column row.
var Header = []string{"seq", "tx_ns", "rx_ns", "latency_ns"}

// WriteCSV copies every record from r to w as CSV and returns the row
// count. A truncated trailing record ends the copy with ErrTruncatedLog
// after the complete rows have been written.
func WriteCSV(w io.Writer, r *binlog.Reader) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("export: write header: %w", err)
	}

	row := make([]string, 4)
	n := 0
	var readErr error
	for {
		e, err := r.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		row[0] = strconv.FormatUint(uint64(e.Sequence), 10)
		row[1] = strconv.FormatUint(e.SendNs, 10)
		row[2] = strconv.FormatUint(e.ReceiveNs, 10)
		row[3] = strconv.FormatInt(e.LatencyNs, 10)
		if err := cw.Write(row); err != nil {
			return n, fmt.Errorf("export: write row: %w", err)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("export: flush: %w", err)
	}
	return n, readErr
}

// ConvertFile converts the binary log at src into CSV at dst. A dst ending
// in ".zst" is zstd-compressed.
func ConvertFile(src, dst string) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("export: open %s: %w", src, err)
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("export: create directory %s: %w", dir, err)
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("export: create %s: %w", dst, err)
	}

	var w io.Writer = out
	var zw *zstd.Encoder
	if strings.HasSuffix(dst, ".zst") {
		zw, err = zstd.NewWriter(out)
		if err != nil {
			out.Close()
			return 0, fmt.Errorf("export: zstd: %w", err)
		}
		w = zw
	}

	n, err := WriteCSV(w, binlog.NewReader(in))
	if zw != nil {
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: zstd close: %w", cerr)
		}
	}
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("export: close %s: %w", dst, cerr)
	}
	return n, err
}

// OpenCSV opens a CSV written by ConvertFile, transparently decompressing
// ".zst" files. The caller closes the returned reader.
func OpenCSV(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("export: zstd: %w", err)
	}
	return &zstdFile{Decoder: zr, f: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}
