// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"gneiss/internal/config"
	"gneiss/internal/errors"
	"gneiss/internal/ir"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: gneiss [flags] <file.ll>\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	passes := flag.String("passes", "", "comma-separated passes to run (funclog or varassign)")
	configPath := flag.String("config", "", "YAML pipeline description")
	output := flag.String("o", "", "write the instrumented module here instead of stdout")
	verbosity := flag.Int("v", -1, "log verbosity of the engine itself")
	logPath := flag.String("log", "", "write engine logs to this file instead of stderr")
	showReport := flag.Bool("report", false, "print per-function trace counts")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	path := flag.Arg(0)
	startTime := time.Now()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fail(*configPath, "", err)
		}
		cfg = loaded
	}
	if *passes != "" {
		cfg.Passes = strings.Split(*passes, ",")
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *logPath != "" {
		cfg.Log.Path = *logPath
	}

	if cfg.Log.Path != "" {
		commonlog.Configure(cfg.Log.Verbosity, &cfg.Log.Path)
	} else {
		commonlog.Configure(cfg.Log.Verbosity, nil)
	}

	pipeline, err := cfg.Pipeline()
	if err != nil {
		fail(path, "", err)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fail(path, "", errors.ReadFailure(path, err))
	}

	module, err := ir.Parse(path, string(source))
	if err != nil {
		fail(path, string(source), errors.ParseFailure(err))
	}

	report, err := pipeline.Run(module)
	if err != nil {
		fail(path, string(source), err)
	}

	text := ir.Print(module)
	if cfg.Output != "" {
		if err := os.WriteFile(cfg.Output, []byte(text), 0o644); err != nil {
			fail(cfg.Output, "", errors.NewPassError(errors.StageInstrument, errors.ErrorInstrumentation, "cannot write %s", cfg.Output).Wrap(err))
		}
	} else {
		fmt.Print(text)
	}

	if *showReport {
		fmt.Fprint(os.Stderr, report.String())
	}
	color.New(color.FgGreen).Fprintf(os.Stderr, "Instrumented %s with %d trace call(s) in %s\n",
		path, report.Total.Total(), formatDuration(time.Since(startTime)))
}

// fail prints err as a diagnostic and exits with status 1.
func fail(path, source string, err error) {
	pe, ok := errors.AsPassError(err)
	if !ok {
		pe = errors.NewPassError(errors.StageInstrument, errors.ErrorInstrumentation, "%v", err)
	}
	reporter := errors.NewErrorReporter(path, source)
	fmt.Fprint(os.Stderr, reporter.FormatError(pe.CompilerError()))
	if pe.Dump != "" {
		color.New(color.Bold).Fprintln(os.Stderr, "module after instrumentation:")
		fmt.Fprintln(os.Stderr, pe.Dump)
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "%s failed\n", pe.Stage)
	os.Exit(1)
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
