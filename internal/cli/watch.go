package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartpreach/smartpreach-server/internal/remote"
)

type watchOptions struct {
	interval    time.Duration
	debounce    time.Duration
	lookup      bool
	verseAPI    string
	translation string
}

func newWatchCmd(opts *options) *cobra.Command {
	wopts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <sessionId>",
		Short: "Follow a session, printing reference and display changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := runWatch(ctx, opts, wopts, args[0])
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&wopts.interval, "interval", remote.DefaultPollInterval, "Polling interval")
	cmd.Flags().DurationVar(&wopts.debounce, "debounce", remote.DefaultReferenceDebounce, "Delay before a new reference is looked up")
	cmd.Flags().BoolVar(&wopts.lookup, "lookup", false, "Fetch and print verse text for each reference")
	cmd.Flags().StringVar(&wopts.verseAPI, "verse-api", remote.DefaultVerseAPI, "Verse lookup service base URL")
	cmd.Flags().StringVar(&wopts.translation, "translation", "", "Translation passed to the verse lookup service")
	return cmd
}

func runWatch(ctx context.Context, opts *options, wopts *watchOptions, sessionID string) error {
	var (
		mu          sync.Mutex
		lastDisplay *remote.State
	)

	var lookup *remote.VerseLookup
	if wopts.lookup {
		lookup = remote.NewVerseLookup(wopts.verseAPI, wopts.translation, nil)
	}

	poller := remote.NewPoller(opts.client(), sessionID, remote.PollerConfig{
		Interval: wopts.interval,
		Debounce: wopts.debounce,
		OnConnection: func(connected bool) {
			mu.Lock()
			defer mu.Unlock()
			if connected {
				okLabel.Fprintln(opts.out, "● connected")
			} else {
				errorLabel.Fprintln(opts.out, "○ disconnected (session ended or server unreachable)")
			}
		},
		OnDisplay: func(s remote.State) {
			mu.Lock()
			defer mu.Unlock()
			if lastDisplay != nil && lastDisplay.FontSize == s.FontSize && lastDisplay.IsBlackout == s.IsBlackout && lastDisplay.SlideIndex == s.SlideIndex {
				return
			}
			copied := s
			lastDisplay = &copied
			dimLabel.Fprintf(opts.out, "display: font %d%%  slide %d  blackout %t\n", s.FontSize, s.SlideIndex, s.IsBlackout)
		},
		OnReference: func(ctx context.Context, ref string) {
			var text string
			if lookup != nil && ref != "" {
				passage, err := lookup.Lookup(ctx, ref)
				if err != nil {
					text = "lookup failed: " + err.Error()
				} else {
					text = passage.Text
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if ref == "" {
				fmt.Fprintln(opts.out, "reference cleared")
				return
			}
			refLabel.Fprintln(opts.out, ref)
			if text != "" {
				fmt.Fprintf(opts.out, "  %s\n", text)
			}
		},
	})

	return poller.Run(ctx)
}
