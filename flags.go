package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"netlatlab/config"
)

// cliConfig is what the command line carries besides pipeline settings.
type cliConfig struct {
	ConfigPath  string
	Validate    bool
	ShowVersion bool
}

// override ties a flag to its env variable and the Config field it sets.
type override struct {
	flag, env string
	copy      func(dst, src *config.Config)
}

var overrides = []override{
	{"output", "NLL_OUTPUT", func(d, s *config.Config) { d.OutputPath = s.OutputPath }},
	{"bind", "NLL_BIND", func(d, s *config.Config) { d.BindAddr = s.BindAddr }},
	{"port", "NLL_PORT", func(d, s *config.Config) { d.Port = s.Port }},
	{"cpu", "NLL_CPU", func(d, s *config.Config) { d.IngestCPU = s.IngestCPU }},
	{"worker-cpu", "NLL_WORKER_CPU", func(d, s *config.Config) { d.WorkerCPU = s.WorkerCPU }},
	{"priority", "NLL_PRIORITY", func(d, s *config.Config) { d.RealtimePriority = s.RealtimePriority }},
	{"batch", "NLL_BATCH", func(d, s *config.Config) { d.BatchSize = s.BatchSize }},
	{"worker-batch", "NLL_WORKER_BATCH", func(d, s *config.Config) { d.WorkerBatch = s.WorkerBatch }},
	{"queue", "NLL_QUEUE", func(d, s *config.Config) { d.QueueCapacity = s.QueueCapacity }},
	{"logger-records", "NLL_LOGGER_RECORDS", func(d, s *config.Config) { d.LoggerRecords = s.LoggerRecords }},
	{"timeout", "NLL_TIMEOUT", func(d, s *config.Config) { d.ReceiveTimeout = s.ReceiveTimeout }},
	{"rcvbuf", "NLL_RCVBUF", func(d, s *config.Config) { d.RecvBufferSize = s.RecvBufferSize }},
	{"single-thread", "NLL_SINGLE_THREAD", func(d, s *config.Config) { d.SingleThread = s.SingleThread }},
	{"work", "NLL_WORK", func(d, s *config.Config) { d.ProcessingDelay = s.ProcessingDelay }},
	{"max-packets", "NLL_MAX_PACKETS", func(d, s *config.Config) { d.MaxPackets = s.MaxPackets }},
	{"metrics-addr", "NLL_METRICS_ADDR", func(d, s *config.Config) { d.MetricsAddr = s.MetricsAddr }},
	{"run-store", "NLL_RUN_STORE", func(d, s *config.Config) { d.RunStorePath = s.RunStorePath }},
	{"summary", "NLL_SUMMARY", func(d, s *config.Config) { d.SummaryPath = s.SummaryPath }},
	{"log-level", "NLL_LOG_LEVEL", func(d, s *config.Config) { d.LogLevel = s.LogLevel }},
	{"log-format", "NLL_LOG_FORMAT", func(d, s *config.Config) { d.LogFormat = s.LogFormat }},
}

// parseFlags resolves the receiver configuration. Precedence, lowest first:
// built-in defaults, the YAML file named by -config, NLL_* environment
// variables, explicit flags.
func parseFlags(args []string, stderr io.Writer) (*cliConfig, config.Config, error) {
	cli := &cliConfig{}
	ov := config.Default()
	env := &envReader{}

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cli.ConfigPath, "config", env.getString("NLL_CONFIG", ""),
		"YAML configuration file (env: NLL_CONFIG)")
	fs.BoolVar(&cli.Validate, "validate", false, "Validate configuration and exit")
	fs.BoolVar(&cli.ShowVersion, "version", false, "Show version information")

	fs.StringVar(&ov.OutputPath, "output", env.getString("NLL_OUTPUT", ov.OutputPath),
		"Binary latency log path (env: NLL_OUTPUT)")
	fs.StringVar(&ov.BindAddr, "bind", env.getString("NLL_BIND", ov.BindAddr),
		"IPv4 address to bind (env: NLL_BIND)")
	fs.IntVar(&ov.Port, "port", env.getInt("NLL_PORT", ov.Port),
		"UDP port (env: NLL_PORT)")
	fs.IntVar(&ov.IngestCPU, "cpu", env.getInt("NLL_CPU", ov.IngestCPU),
		"Core for the ingestion thread, -1 to leave unpinned (env: NLL_CPU)")
	fs.IntVar(&ov.WorkerCPU, "worker-cpu", env.getInt("NLL_WORKER_CPU", ov.WorkerCPU),
		"Core for the worker thread, -1 to leave unpinned (env: NLL_WORKER_CPU)")
	fs.IntVar(&ov.RealtimePriority, "priority", env.getInt("NLL_PRIORITY", ov.RealtimePriority),
		"SCHED_FIFO priority, 0 to skip (env: NLL_PRIORITY)")
	fs.IntVar(&ov.BatchSize, "batch", env.getInt("NLL_BATCH", ov.BatchSize),
		"Datagrams per receive syscall, 1 for single receive (env: NLL_BATCH)")
	fs.IntVar(&ov.WorkerBatch, "worker-batch", env.getInt("NLL_WORKER_BATCH", ov.WorkerBatch),
		"Entries the worker drains per pass (env: NLL_WORKER_BATCH)")
	fs.IntVar(&ov.QueueCapacity, "queue", env.getInt("NLL_QUEUE", ov.QueueCapacity),
		"Hand-off ring size, power of two (env: NLL_QUEUE)")
	fs.IntVar(&ov.LoggerRecords, "logger-records", env.getInt("NLL_LOGGER_RECORDS", ov.LoggerRecords),
		"Records buffered per log write (env: NLL_LOGGER_RECORDS)")
	fs.DurationVar(&ov.ReceiveTimeout, "timeout", env.getDuration("NLL_TIMEOUT", ov.ReceiveTimeout),
		"Receive timeout between stop-flag polls (env: NLL_TIMEOUT)")
	fs.IntVar(&ov.RecvBufferSize, "rcvbuf", env.getInt("NLL_RCVBUF", ov.RecvBufferSize),
		"SO_RCVBUF bytes, 0 for the kernel default (env: NLL_RCVBUF)")
	fs.BoolVar(&ov.SingleThread, "single-thread", env.getBool("NLL_SINGLE_THREAD", ov.SingleThread),
		"Process inline on the receiving thread (env: NLL_SINGLE_THREAD)")
	fs.DurationVar(&ov.ProcessingDelay, "work", env.getDuration("NLL_WORK", ov.ProcessingDelay),
		"Synthetic busy-wait per probe (env: NLL_WORK)")
	fs.Uint64Var(&ov.MaxPackets, "max-packets", env.getUint("NLL_MAX_PACKETS", ov.MaxPackets),
		"Stop after this many datagrams, 0 for unlimited (env: NLL_MAX_PACKETS)")
	fs.StringVar(&ov.MetricsAddr, "metrics-addr", env.getString("NLL_METRICS_ADDR", ov.MetricsAddr),
		"Prometheus listen address, empty to disable (env: NLL_METRICS_ADDR)")
	fs.StringVar(&ov.RunStorePath, "run-store", env.getString("NLL_RUN_STORE", ov.RunStorePath),
		"sqlite run ledger, empty to disable (env: NLL_RUN_STORE)")
	fs.StringVar(&ov.SummaryPath, "summary", env.getString("NLL_SUMMARY", ov.SummaryPath),
		"Final counters as JSON, empty to disable (env: NLL_SUMMARY)")
	fs.StringVar(&ov.LogLevel, "log-level", env.getString("NLL_LOG_LEVEL", ov.LogLevel),
		"Log level: debug, info, warn, error (env: NLL_LOG_LEVEL)")
	fs.StringVar(&ov.LogFormat, "log-format", env.getString("NLL_LOG_FORMAT", ov.LogFormat),
		"Log format: text, json (env: NLL_LOG_FORMAT)")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "%s - one-way UDP latency receiver\n\nUsage: %s [options]\n\nOptions:\n", appName, appName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, config.Config{}, err
	}
	if err := errors.Join(env.errs...); err != nil {
		return nil, config.Config{}, err
	}

	cfg := config.Default()
	if cli.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(cli.ConfigPath); err != nil {
			return nil, config.Config{}, err
		}
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	for _, o := range overrides {
		if explicit[o.flag] || os.Getenv(o.env) != "" {
			o.copy(&cfg, &ov)
		}
	}
	return cli, cfg, nil
}

// envReader resolves NLL_* fallbacks for flag defaults. A variable that is
// set but does not parse is recorded rather than replaced by the default, so
// a typo cannot silently override the config file.
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: %v", config.ErrInvalid, key, value, err))
}

func (e *envReader) getString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e *envReader) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return parsed
}

func (e *envReader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return parsed
}

func (e *envReader) getUint(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return parsed
}

func (e *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return parsed
}
