// Package config holds the receiver's run configuration: defaults, YAML
// file loading and validation. The binary layers command-line flags on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"netlatlab/binlog"
	"netlatlab/constants"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is everything the receiver pipeline consumes as plain values.
type Config struct {
	// Capture
	OutputPath string `yaml:"output_path" json:"output_path"`
	BindAddr   string `yaml:"bind_addr" json:"bind_addr"`
	Port       int    `yaml:"port" json:"port"`

	// Thread placement; -1 leaves a thread unpinned.
	IngestCPU        int `yaml:"ingest_cpu" json:"ingest_cpu"`
	WorkerCPU        int `yaml:"worker_cpu" json:"worker_cpu"`
	RealtimePriority int `yaml:"realtime_priority" json:"realtime_priority"`

	// Pipeline shape
	BatchSize      int           `yaml:"batch_size" json:"batch_size"`
	WorkerBatch    int           `yaml:"worker_batch" json:"worker_batch"`
	QueueCapacity  int           `yaml:"queue_capacity" json:"queue_capacity"`
	LoggerRecords  int           `yaml:"logger_records" json:"logger_records"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout" json:"receive_timeout"`
	RecvBufferSize int           `yaml:"recv_buffer_bytes" json:"recv_buffer_bytes"`
	SingleThread   bool          `yaml:"single_thread" json:"single_thread"`

	// Experiments
	ProcessingDelay time.Duration `yaml:"processing_delay" json:"processing_delay"`
	MaxPackets      uint64        `yaml:"max_packets" json:"max_packets"`

	// Reporting
	MetricsAddr  string `yaml:"metrics_addr" json:"metrics_addr"`
	RunStorePath string `yaml:"run_store" json:"run_store"`
	SummaryPath  string `yaml:"summary_path" json:"summary_path"`
	LogLevel     string `yaml:"log_level" json:"log_level"`
	LogFormat    string `yaml:"log_format" json:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		OutputPath:       "latency.bin",
		BindAddr:         "0.0.0.0",
		Port:             constants.DefaultPort,
		IngestCPU:        constants.DefaultIngestCPU,
		WorkerCPU:        constants.DefaultWorkerCPU,
		RealtimePriority: constants.RealtimePriority,
		BatchSize:        constants.DefaultBatch,
		WorkerBatch:      constants.DefaultWorkerBatch,
		QueueCapacity:    constants.DefaultQueueCapacity,
		LoggerRecords:    binlog.DefaultCapacity,
		ReceiveTimeout:   constants.ReceiveTimeout,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected so a
// typo in an experiment file does not silently fall back to a default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr is the host:port the ingestion socket binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Port))
}

// Normalize clamps soft limits and reports what it changed. It runs before
// Validate.
func (c *Config) Normalize() []string {
	var notes []string
	if c.BatchSize > constants.MaxBatch {
		notes = append(notes, fmt.Sprintf("batch_size %d exceeds max %d, clamping", c.BatchSize, constants.MaxBatch))
		c.BatchSize = constants.MaxBatch
	}
	if c.LoggerRecords < 1 {
		c.LoggerRecords = binlog.DefaultCapacity
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = constants.ReceiveTimeout
	}
	return notes
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.OutputPath == "":
		return fmt.Errorf("%w: output_path is empty", ErrInvalid)
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
	case net.ParseIP(c.BindAddr) == nil || net.ParseIP(c.BindAddr).To4() == nil:
		return fmt.Errorf("%w: bind_addr %q is not an IPv4 address", ErrInvalid, c.BindAddr)
	case c.IngestCPU < -1 || c.WorkerCPU < -1:
		return fmt.Errorf("%w: cpu ids must be >= -1", ErrInvalid)
	case c.RealtimePriority < 0 || c.RealtimePriority > 99:
		return fmt.Errorf("%w: realtime_priority %d outside 0..99", ErrInvalid, c.RealtimePriority)
	case c.BatchSize < 1 || c.BatchSize > constants.MaxBatch:
		return fmt.Errorf("%w: batch_size %d outside 1..%d", ErrInvalid, c.BatchSize, constants.MaxBatch)
	case c.WorkerBatch < 1:
		return fmt.Errorf("%w: worker_batch must be >= 1", ErrInvalid)
	case c.QueueCapacity < 2 || c.QueueCapacity&(c.QueueCapacity-1) != 0:
		return fmt.Errorf("%w: queue_capacity %d is not a power of two >= 2", ErrInvalid, c.QueueCapacity)
	case c.ProcessingDelay < 0:
		return fmt.Errorf("%w: processing_delay is negative", ErrInvalid)
	case c.RecvBufferSize < 0:
		return fmt.Errorf("%w: recv_buffer_bytes is negative", ErrInvalid)
	}
	return nil
}
