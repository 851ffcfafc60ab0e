package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	streamer "github.com/scrogson/sea-streamer"
	"github.com/scrogson/sea-streamer/format"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	file         string
	format       string
	filter       string
	follow       bool
	pollInterval time.Duration
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "ssdecode",
		Short: "Decode a .ss message log file",
		Long: "ssdecode renders every frame of a .ss log file as text, either as " +
			"single-line log entries or as one JSON object per line. beacons show " +
			"up as comment markers in log format.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), out, opts)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "path to the .ss log file")
	cmd.Flags().StringVar(&opts.format, "format", "log", "output format: log or ndjson")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "CEL expression selecting frames, e.g. 'stream_key == \"hello\" && sequence >= 2'")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "keep reading as the file grows")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 100*time.Millisecond, "wait between polls while following")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func run(ctx context.Context, out io.Writer, opts options) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	render, err := newRenderer(out, opts.format)
	if err != nil {
		return err
	}
	filter, err := newFilter(opts.filter)
	if err != nil {
		return fmt.Errorf("can't compile filter: %w", err)
	}

	mode := streamer.ModeReplay
	if opts.follow {
		mode = streamer.ModeLiveReplay
	}

	var renderErr error
	reader, err := streamer.OpenReader(opts.file, streamer.ReaderConfig{
		Mode: mode,
		OnBeacon: func(beacon format.Beacon) {
			if err := render.Beacon(beacon); err != nil && renderErr == nil {
				renderErr = err
			}
		},
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := reader.Next()
		switch {
		case err == nil:
			if renderErr != nil {
				return renderErr
			}
			if !filter.eval(frame) {
				continue
			}
			if err := render.Frame(frame); err != nil {
				return err
			}
		case errors.Is(err, streamer.EndOfLogErr):
			return nil
		case errors.Is(err, streamer.PendingErr):
			if !opts.follow {
				// the writer did not finish its last record
				logger.Warn("log file ends mid-record", "file", opts.file, "offset", reader.Offset())
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(opts.pollInterval):
			}
		default:
			return fmt.Errorf("can't decode %s: %w", opts.file, err)
		}
	}
}
