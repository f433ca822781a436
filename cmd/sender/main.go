// Command sender emits timestamped probes at a fixed rate for the receiver
// to measure.
//
//	sender -ip 10.0.0.2 -rate 50000 -mode burst -burst 16 -duration 30s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"netlatlab/constants"
	"netlatlab/debug"
	"netlatlab/export"
	"netlatlab/sender"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		debug.DropError("FATAL", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	o := sender.DefaultOptions()
	var (
		ip, mode, resultPath string
		logLevel, logFormat  string
		port                 int
	)

	fs := flag.NewFlagSet("sender", flag.ContinueOnError)
	fs.StringVar(&ip, "ip", "127.0.0.1", "Destination IPv4 address")
	fs.IntVar(&port, "port", constants.DefaultPort, "Destination UDP port")
	fs.IntVar(&o.RatePPS, "rate", o.RatePPS, "Average probes per second")
	fs.StringVar(&mode, "mode", string(o.Mode), "Emission pattern: steady or burst")
	fs.IntVar(&o.Burst, "burst", o.Burst, "Probes per tick in burst mode")
	fs.DurationVar(&o.Duration, "duration", o.Duration, "Run length, 0 to rely on -count")
	fs.Uint64Var(&o.Count, "count", o.Count, "Stop after this many probes, 0 for unlimited")
	fs.IntVar(&o.Payload, "size", o.Payload, "Datagram size in bytes (header is 16)")
	fs.IntVar(&o.CPU, "cpu", o.CPU, "Core to pin the sending thread, -1 to leave unpinned")
	fs.StringVar(&resultPath, "result", "", "Write the run result as JSON to this path")
	fs.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&logFormat, "log-format", "text", "Log format: text, json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	debug.SetLogger(debug.NewLogger(os.Stderr, logLevel, logFormat).With("service", "sender"))
	o.Mode = sender.Mode(mode)
	o.Dest = net.JoinHostPort(ip, strconv.Itoa(port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := sender.Dial(ctx, o)
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.Run(ctx)
	if resultPath != "" {
		if err := export.WriteJSONFile(resultPath, res); err != nil {
			return err
		}
	}
	if res.Sent == 0 {
		return fmt.Errorf("sender: no probes sent (%d send errors)", res.SendErrors)
	}
	return nil
}
