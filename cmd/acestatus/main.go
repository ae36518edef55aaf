package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ace-status/internal/app"
	"ace-status/internal/config"
	"ace-status/internal/status"
)

const usage = `usage: acestatus [-offline] [status]

  status   print the current train status
  (none)   send the current train status to the notification sink
`

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	offline := flag.Bool("offline", false, "serve feeds from the embedded seed fixtures")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage); flag.PrintDefaults() }
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Failures are reported on stderr; the process still exits 0.
	if err := run(ctx, flag.Arg(0), *offline, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

func run(ctx context.Context, action string, offline bool, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if offline {
		cfg.Offline = true
	}

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if action == "status" {
		text, err := a.Service.GetStatus(ctx, a.Options)
		if err != nil {
			return err
		}
		if text == "" {
			text = "No trains running"
		}
		fmt.Fprintln(out, text)
		return nil
	}

	outcome, err := a.Service.SendStatus(ctx, a.Options)
	if err != nil {
		return err
	}
	switch outcome {
	case status.Sent:
		fmt.Fprintln(out, "Status Sent Successfully")
	case status.Skipped:
		fmt.Fprintln(out, "No trains running. Status not sent.")
	}
	return nil
}
