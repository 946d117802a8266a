package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kritzerenkrieg/FastDLX/internal/config"
	"github.com/kritzerenkrieg/FastDLX/internal/logging"
	"github.com/kritzerenkrieg/FastDLX/internal/mirror"
	"github.com/kritzerenkrieg/FastDLX/internal/progress"
)

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	url := fs.String("url", "", "Base URL of the FastDL tree (required)")
	target := fs.String("target", "", "Local target directory (required)")
	retries := fs.Int("retries", 0, "Attempts per file transfer (default 3)")
	skipMaps := fs.Bool("skip-maps", false, "Skip map directories and map files")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	logFile := fs.String("log", "", "Append log lines to this file")
	timeout := fs.Duration("timeout", 0, "Per-request timeout (default 30s)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: fastdlx sync [options]

Mirror a remote FastDL content tree (an HTTP autoindex listing) into a
local directory. Interrupted transfers resume on the next run; compressed
artifacts (.bz2) are stored decompressed.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(config.Config{
		URL:       *url,
		TargetDir: *target,
		SkipMaps:  *skipMaps,
		Quiet:     *quiet,
		LogFile:   *logFile,
		Timeout:   *timeout,
		Retry:     config.RetryConfig{Attempts: *retries},
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[fastdlx] Received interrupt, shutting down...")
		cancel()
	}()

	var sink progress.Sink = progress.NewReporter(os.Stderr)
	if cfg.Quiet {
		sink = progress.Discard
	}

	log := logging.New(io.Discard)
	if cfg.LogFile != "" {
		opened, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			// Logging is best-effort; run without it.
			fmt.Fprintf(os.Stderr, "[fastdlx] Warning: %v\n", err)
		} else {
			log = opened
			defer log.Close()
		}
	}

	syncer := mirror.New(mirror.Options{
		BaseURL:    cfg.URL,
		TargetDir:  cfg.TargetDir,
		RetryCount: cfg.Retry.Attempts,
		SkipMaps:   cfg.SkipMaps,
		RetryDelay: cfg.Retry.Delay,
		Timeout:    cfg.Timeout,
		ChunkSize:  cfg.ChunkSize,
	}, sink, log)

	start := time.Now()
	res, err := syncer.Run(ctx)
	if err != nil {
		if errors.Is(err, mirror.ErrInvalidBaseURL) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	fmt.Fprintf(os.Stderr, "[fastdlx] %d/%d files synced, %d failed (%s)\n",
		res.CompletedFiles, res.TotalFiles, res.FailedFiles, time.Since(start).Round(time.Second))

	if !res.Complete {
		fmt.Fprintln(os.Stderr, "[fastdlx] Some directories could not be read; run again to retry")
		return ExitIncomplete
	}
	return ExitSuccess
}
