// Package metrics exposes a running receiver's counters to Prometheus.
//
// The Collector reads the pipeline's atomics at scrape time and emits const
// metrics; the hot paths never touch a Prometheus type.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"netlatlab/binlog"
	"netlatlab/stats"
)

const namespace = "netlatlab"

// Source is what the collector scrapes. *pipeline.Pipeline satisfies it.
type Source interface {
	Stats() *stats.Stats
	QueueLen() int
	Logger() *binlog.Logger
}

// Collector implements prometheus.Collector over a Source.
type Collector struct {
	src Source

	received    *prometheus.Desc
	processed   *prometheus.Desc
	dropped     *prometheus.Desc
	negative    *prometheus.Desc
	latencySum  *prometheus.Desc
	latencyMin  *prometheus.Desc
	latencyMax  *prometheus.Desc
	latencyMean *prometheus.Desc
	queueDepth  *prometheus.Desc
	logRecords  *prometheus.Desc
	logWrites   *prometheus.Desc
	logBytes    *prometheus.Desc
	logErrors   *prometheus.Desc
}

// NewCollector describes every metric once; values are read per scrape.
func NewCollector(src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:         src,
		received:    desc("received_total", "Datagrams taken off the socket."),
		processed:   desc("processed_total", "Probes turned into latency samples."),
		dropped:     desc("dropped_total", "Datagrams discarded, by reason.", "reason"),
		negative:    desc("negative_latency_total", "Samples whose receive stamp preceded the send stamp."),
		latencySum:  desc("latency_sum_nanoseconds", "Signed sum of all sample latencies."),
		latencyMin:  desc("latency_min_nanoseconds", "Smallest sample latency seen."),
		latencyMax:  desc("latency_max_nanoseconds", "Largest sample latency seen."),
		latencyMean: desc("latency_mean_nanoseconds", "Mean sample latency."),
		queueDepth:  desc("queue_depth", "Entries waiting in the hand-off ring."),
		logRecords:  desc("log_records_total", "Records appended to the latency log."),
		logWrites:   desc("log_writes_total", "Bulk writes issued by the latency log."),
		logBytes:    desc("log_bytes_total", "Bytes the latency log wrote to disk."),
		logErrors:   desc("log_write_errors_total", "Failed or short latency log writes."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.received, c.processed, c.dropped, c.negative,
		c.latencySum, c.latencyMin, c.latencyMax, c.latencyMean,
		c.queueDepth, c.logRecords, c.logWrites, c.logBytes, c.logErrors,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats().Snapshot()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.received, s.Received)
	counter(c.processed, s.Processed)
	counter(c.dropped, s.Malformed, "malformed")
	counter(c.dropped, s.BadMagic, "bad_magic")
	counter(c.dropped, s.QueueFull, "queue_full")
	counter(c.negative, s.NegativeLatency)
	gauge(c.latencySum, float64(s.AccumulatedLatencyNs))
	gauge(c.latencyMin, float64(s.MinLatencyNs))
	gauge(c.latencyMax, float64(s.MaxLatencyNs))
	gauge(c.latencyMean, s.MeanLatencyNs)
	gauge(c.queueDepth, float64(c.src.QueueLen()))

	if l := c.src.Logger(); l != nil {
		counter(c.logRecords, l.Logged())
		counter(c.logWrites, l.Writes())
		counter(c.logBytes, l.BytesWritten())
		counter(c.logErrors, l.WriteErrors())
	}
}

// NewRegistry returns a registry holding the receiver collector plus the
// standard Go runtime and process collectors.
func NewRegistry(src Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		NewCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
