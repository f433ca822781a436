// Command latexport converts a receiver's binary latency log into CSV and
// prints a JSON summary of the capture.
//
//	latexport -in latency.bin -csv latency.csv.zst -summary
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"netlatlab/binlog"
	"netlatlab/debug"
	"netlatlab/export"
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
	var (
		in          string
		csvPath     string
		summary     bool
		summaryPath string
	)
	fs := flag.NewFlagSet("latexport", flag.ContinueOnError)
	fs.StringVar(&in, "in", "latency.bin", "Binary latency log to read")
	fs.StringVar(&csvPath, "csv", "", "CSV output path; a .zst suffix compresses with zstd")
	fs.BoolVar(&summary, "summary", false, "Print the latency summary as JSON on stdout")
	fs.StringVar(&summaryPath, "summary-out", "", "Also write the summary JSON to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if csvPath == "" && !summary && summaryPath == "" {
		return fmt.Errorf("latexport: nothing to do, pass -csv and/or -summary")
	}

	if csvPath != "" {
		n, err := export.ConvertFile(in, csvPath)
		if errors.Is(err, binlog.ErrTruncatedLog) {
			debug.DropWarning("EXPORT", "trailing partial record ignored", "path", in, "error", err)
		} else if err != nil {
			return err
		}
		debug.DropMessage("EXPORT", "converted", "records", n, "csv", csvPath)
	}

	if summary || summaryPath != "" {
		s, err := export.SummarizeFile(in)
		if errors.Is(err, binlog.ErrTruncatedLog) {
			debug.DropWarning("EXPORT", "trailing partial record ignored", "path", in, "error", err)
		} else if err != nil {
			return err
		}
		if summary {
			if err := export.WriteJSON(os.Stdout, s); err != nil {
				return err
			}
		}
		if summaryPath != "" {
			if err := export.WriteJSONFile(summaryPath, s); err != nil {
				return err
			}
		}
	}
	return nil
}
