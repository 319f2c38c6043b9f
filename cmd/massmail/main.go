// Package main is the entry point for the massmail bulk mailer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mailfan/massmail"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the server configuration file")
	dryRun := flag.Bool("dry-run", false, "print envelopes to stdout instead of delivering them")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("massmail %s\n%s\n", massmail.GetVersion(), massmail.GetVersionInfo())
		return
	}

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	logger := setupLogger(*logLevel)

	// Load configuration
	cfg, err := massmail.LoadServerConfig(*configPath)
	if err != nil {
		logger.Error("failed to load server configuration", "error", err)
		os.Exit(1)
	}

	msg, err := massmail.LoadMessage(flag.Arg(1))
	if err != nil {
		logger.Error("failed to load message", "error", err)
		os.Exit(1)
	}

	recs, err := massmail.LoadRecipients(flag.Arg(0))
	if err != nil {
		logger.Error("failed to load recipients", "error", err)
		os.Exit(1)
	}

	opts := []massmail.Option{massmail.WithLogger(logger)}
	if *dryRun {
		opts = append(opts, massmail.WithDryRun())
	}

	d, err := massmail.New(*cfg, msg, opts...)
	if err != nil {
		logger.Error("failed to create dispatcher", "error", err)
		os.Exit(1)
	}

	targets := d.Screen(recs)

	msg.Preview(os.Stdout)

	if !*yes && !confirm(len(targets)) {
		fmt.Println("Cancelled.")
		return
	}

	// Setup graceful shutdown; outstanding recipients are recorded as
	// failed rather than silently dropped.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, stopping dispatch", "signal", sig)
		cancel()
	}()

	report, err := d.Run(ctx, targets)
	if err != nil {
		logger.Error("dispatch did not complete", "error", err)
	}
	if report == nil {
		os.Exit(1)
	}

	fmt.Printf("Delivered %d of %d messages.\n", report.Delivered, report.Total)
	for _, f := range report.Failures() {
		fmt.Fprintf(os.Stderr, "failed: %s: %v\n", f.Email, f.Err)
	}

	if err != nil || report.Failed > 0 {
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: massmail [flags] recipients.csv message.toml\n\n")
	fmt.Fprintf(out, "Send a templated campaign message to every address in a CSV recipient list.\n\nFlags:\n")
	flag.PrintDefaults()
}

// setupLogger configures the global slog logger with JSON output on stderr
// and the specified log level. Stdout stays reserved for the preview, the
// prompt and the final report.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// confirm prints the send prompt and reads one line from stdin. Anything
// other than "y" or "Y" declines, including EOF.
func confirm(count int) bool {
	fmt.Printf("Send the above message to the %d people found in the address list? [y/N] ", count)

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	return strings.ToUpper(strings.TrimRight(answer, "\r\n")) == "Y"
}
