package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/sugawarayuuta/sonnet"

	"netlatlab/binlog"
)

// driftBins is the number of receive-time bins whose minimum latencies are
// fitted to estimate clock drift; driftMinSamples gates the fit.
const (
	driftBins       = 20
	driftMinSamples = 1000
)

// Summary describes one capture. Latencies are in nanoseconds; quantiles
// interpolate linearly between order statistics.
type Summary struct {
	Count        int     `json:"count"`
	MinNs        int64   `json:"min_ns"`
	MaxNs        int64   `json:"max_ns"`
	MeanNs       float64 `json:"mean_ns"`
	StdDevNs     float64 `json:"stddev_ns"`
	P50Ns        float64 `json:"p50_ns"`
	P90Ns        float64 `json:"p90_ns"`
	P99Ns        float64 `json:"p99_ns"`
	P999Ns       float64 `json:"p999_ns"`
	JitterP99Ns  float64 `json:"jitter_p99_ns"`
	Negative     int     `json:"negative"`
	FirstSeq     uint32  `json:"first_seq"`
	LastSeq      uint32  `json:"last_seq"`
	Expected     uint64  `json:"expected"`
	Missing      uint64  `json:"missing"`
	LossPct      float64 `json:"loss_pct"`
	Reordered    int     `json:"reordered"`
	Duplicates   int     `json:"duplicates"`
	DriftNsPerS  float64 `json:"drift_ns_per_s"`
	DurationNs   uint64  `json:"duration_ns"`
	ThroughputPS float64 `json:"throughput_pps"`
}

// Summarize computes the summary of entries in arrival order. An empty
// input yields the zero Summary.
func Summarize(entries []binlog.Entry) Summary {
	var s Summary
	n := len(entries)
	if n == 0 {
		return s
	}
	s.Count = n

	lat := make([]float64, n)
	var sum float64
	s.MinNs, s.MaxNs = entries[0].LatencyNs, entries[0].LatencyNs
	for i, e := range entries {
		lat[i] = float64(e.LatencyNs)
		sum += lat[i]
		s.MinNs = min(s.MinNs, e.LatencyNs)
		s.MaxNs = max(s.MaxNs, e.LatencyNs)
		if e.LatencyNs < 0 {
			s.Negative++
		}
	}
	s.MeanNs = sum / float64(n)
	if n > 1 {
		var sq float64
		for _, v := range lat {
			d := v - s.MeanNs
			sq += d * d
		}
		s.StdDevNs = math.Sqrt(sq / float64(n-1))
	}

	if n > 1 {
		jitter := make([]float64, n-1)
		for i := 1; i < n; i++ {
			jitter[i-1] = math.Abs(lat[i] - lat[i-1])
		}
		slices.Sort(jitter)
		s.JitterP99Ns = quantile(jitter, 0.99)
	}

	s.DriftNsPerS = drift(entries)

	sorted := slices.Clone(lat)
	slices.Sort(sorted)
	s.P50Ns = quantile(sorted, 0.50)
	s.P90Ns = quantile(sorted, 0.90)
	s.P99Ns = quantile(sorted, 0.99)
	s.P999Ns = quantile(sorted, 0.999)

	s.sequence(entries)

	first, last := entries[0].ReceiveNs, entries[n-1].ReceiveNs
	if last > first {
		s.DurationNs = last - first
		s.ThroughputPS = float64(n) / (float64(s.DurationNs) / 1e9)
	}
	return s
}

// sequence fills the loss and ordering fields. Expected spans the smallest
// to largest sequence seen; a sample below the running maximum counts as
// reordered, a repeat as a duplicate.
func (s *Summary) sequence(entries []binlog.Entry) {
	lo, hi := entries[0].Sequence, entries[0].Sequence
	seen := newSeqSet(len(entries))
	var runMax uint32
	for i, e := range entries {
		lo = min(lo, e.Sequence)
		hi = max(hi, e.Sequence)
		if !seen.add(e.Sequence) {
			s.Duplicates++
			continue
		}
		if i > 0 && e.Sequence < runMax {
			s.Reordered++
		}
		runMax = max(runMax, e.Sequence)
	}
	s.FirstSeq, s.LastSeq = lo, hi
	s.Expected = uint64(hi) - uint64(lo) + 1
	s.Missing = s.Expected - uint64(seen.len())
	s.LossPct = 100 * float64(s.Missing) / float64(s.Expected)
}

// quantile interpolates linearly at q over sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// drift estimates the clock skew between sender and receiver as the slope of
// a least-squares line through the per-bin latency minima over receive time.
// The minima track the path floor, so their trend is the clocks drifting
// apart rather than queueing. Returns 0 below driftMinSamples.
func drift(entries []binlog.Entry) float64 {
	if len(entries) < driftMinSamples {
		return 0
	}
	t0 := entries[0].ReceiveNs
	span := entries[len(entries)-1].ReceiveNs - t0
	if span == 0 {
		return 0
	}

	var (
		mins  [driftBins]int64
		mids  [driftBins]float64
		found [driftBins]bool
	)
	width := float64(span) / driftBins
	for _, e := range entries {
		if e.ReceiveNs < t0 {
			continue
		}
		b := int(float64(e.ReceiveNs-t0) / width)
		if b >= driftBins {
			b = driftBins - 1
		}
		if !found[b] || e.LatencyNs < mins[b] {
			mins[b] = e.LatencyNs
			found[b] = true
		}
	}

	var xs, ys []float64
	for b := range mins {
		if !found[b] {
			continue
		}
		mids[b] = (float64(b) + 0.5) * width / 1e9
		xs = append(xs, mids[b])
		ys = append(ys, float64(mins[b]))
	}
	if len(xs) < 2 {
		return 0
	}

	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(xs))
	var num, den float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		den += (xs[i] - mx) * (xs[i] - mx)
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// SummarizeFile reads the binary log at path and summarizes it. A truncated
// trailing record is ignored after a warning-worthy error is returned with
// the summary of the complete records.
func SummarizeFile(path string) (Summary, error) {
	entries, err := binlog.ReadFile(path)
	return Summarize(entries), err
}

// WriteJSON encodes v (a Summary or a stats.Snapshot) as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	b, err := sonnet.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("export: write json: %w", err)
	}
	return nil
}

// WriteJSONFile writes v as JSON to path, creating parent directories.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}
