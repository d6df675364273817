package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/NodePath81/linewatch/internal/app"
	"github.com/NodePath81/linewatch/internal/config"
	"github.com/NodePath81/linewatch/internal/history"
	"github.com/NodePath81/linewatch/internal/store"
	"github.com/NodePath81/linewatch/internal/util"
	"github.com/NodePath81/linewatch/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runCmd := flag.NewFlagSet("run", flag.ExitOnError)
			configPath := runCmd.String("config", "", "Path to config file (defaults apply when empty)")
			verbose := runCmd.Bool("verbose", false, "Enable debug logging")
			_ = runCmd.Parse(os.Args[2:])
			runMonitor(*configPath, *verbose)
			return
		case "check":
			checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
			configPath := checkCmd.String("config", "config.yaml", "Path to config file")
			_ = checkCmd.Parse(os.Args[2:])
			checkConfig(*configPath)
			return
		case "report":
			reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
			journalPath := reportCmd.String("file", "", "Path to a recorded journal")
			_ = reportCmd.Parse(os.Args[2:])
			if *journalPath == "" && reportCmd.NArg() > 0 {
				*journalPath = reportCmd.Arg(0)
			}
			reportJournal(*journalPath)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		case "version", "-v", "--version":
			fmt.Println(version.Version)
			return
		}
	}
	runMonitor("", false)
}

func runMonitor(configPath string, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := util.NewLogger(level)

	var err error
	if configPath == "" {
		// No config file: run with defaults and journal into the data dir,
		// so a bare `linewatch` invocation starts recording immediately.
		cfg := config.DefaultConfig()
		cfg.Store.JournalDir = store.DefaultDataDir()
		var runtime *app.Runtime
		runtime, err = app.NewRuntime(cfg, logger)
		if err == nil {
			err = runtime.Start()
			if err == nil {
				waitForSignal(logger, nil)
				runtime.Stop()
				return
			}
			runtime.Stop()
		}
	} else {
		supervisor := app.NewSupervisor(configPath, logger)
		err = supervisor.Start()
		if err == nil {
			waitForSignal(logger, supervisor.Restart)
			supervisor.Stop()
			return
		}
	}
	logger.Error("startup failed", "error", err)
	os.Exit(1)
}

// waitForSignal blocks until SIGINT or SIGTERM. When a reload function is
// given, SIGHUP triggers it instead of shutting down.
func waitForSignal(logger util.Logger, reload func() error) {
	signals := []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	if reload != nil {
		signals = append(signals, syscall.SIGHUP)
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			logger.Info("reload requested")
			if err := reload(); err != nil {
				logger.Error("reload failed", "error", err)
			}
			continue
		}
		logger.Info("shutdown requested")
		return
	}
}

func checkConfig(path string) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config valid: %d latency targets, %d download URLs\n",
		len(cfg.Latency.Targets), len(cfg.Throughput.URLs))
	os.Exit(0)
}

func reportJournal(path string) {
	if path == "" {
		fmt.Fprintln(os.Stderr, "report: journal path required")
		os.Exit(1)
	}
	samples, err := store.LoadJournal(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("samples:          %d\n", len(samples))
	fmt.Printf("session duration: %s\n", history.SessionDuration(samples))
	fmt.Printf("mean latency:     %s\n", history.MeanLatency(samples))
	fmt.Printf("mean download:    %.1f Mbit/s\n", history.MeanDownloadMbits(samples))
	fmt.Printf("timeouts:         %d (%.1f%%)\n",
		history.Timeouts(samples), history.TimeoutFraction(samples)*100)
}

func printHelp() {
	fmt.Print(`linewatch - continuous connection quality monitor

Usage:
  linewatch run [--config <path>] [--verbose]  Start measuring
  linewatch check --config <path>              Validate config file
  linewatch report --file <path>               Summarize a recorded journal
  linewatch help                               Show this help
  linewatch version                            Print version

Running without arguments starts measuring with defaults and journals
results into the user data directory. When started with --config, SIGHUP
reloads the configuration and restarts the engine.
`)
}
