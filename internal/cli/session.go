package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/cobra"

	"github.com/smartpreach/smartpreach-server/internal/model"
	"github.com/smartpreach/smartpreach-server/internal/remote"
)

const (
	createAttempts = 3
	createDelay    = 500 * time.Millisecond
)

func newStartCmd(opts *options) *cobra.Command {
	var presentationID int64

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a live session and print its join link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout*createAttempts)
			defer cancel()

			var pid *int64
			if presentationID > 0 {
				pid = &presentationID
			}

			client := opts.client()
			session, err := retry.DoWithData(
				func() (*model.LiveSession, error) {
					return client.Create(ctx, pid)
				},
				retry.Context(ctx),
				retry.Attempts(createAttempts),
				retry.Delay(createDelay),
				retry.DelayType(retry.BackOffDelay),
				retry.RetryIf(isRetryable),
				retry.LastErrorOnly(true),
			)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				printJSON(opts.out, map[string]any{
					"sessionId": session.ID,
					"remoteUrl": client.RemoteURL(session.ID),
					"qrUrl":     client.QRURL(session.ID),
					"session":   session,
				})
				return nil
			}

			okLabel.Fprintf(opts.out, "Live session started: %s\n", session.ID)
			fmt.Fprintf(opts.out, "Remote:  %s\n", client.RemoteURL(session.ID))
			fmt.Fprintf(opts.out, "QR code: %s\n", client.QRURL(session.ID))
			return nil
		},
	}

	cmd.Flags().Int64Var(&presentationID, "presentation", 0, "Presentation to attach to the session")
	return cmd
}

// isRetryable retries transport failures and 5xx/429 answers only.
func isRetryable(err error) bool {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <sessionId>",
		Short: "Print the current state of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			session, err := opts.client().Get(ctx, args[0])
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				printJSON(opts.out, session)
				return nil
			}
			printSession(opts.out, session)
			return nil
		},
	}
}

func newEndCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "end <sessionId>",
		Short: "End a live session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			if err := opts.client().Delete(ctx, args[0]); err != nil {
				return err
			}

			if opts.jsonOutput {
				printJSON(opts.out, map[string]any{"success": true, "sessionId": args[0]})
				return nil
			}
			okLabel.Fprintf(opts.out, "Live session ended: %s\n", args[0])
			return nil
		},
	}
}

func printSession(w io.Writer, s *model.LiveSession) {
	ref := s.Reference()
	if ref == "" {
		ref = "(none)"
	}
	fmt.Fprintf(w, "Session:   %s\n", s.ID)
	fmt.Fprintf(w, "Reference: %s\n", refLabel.Sprint(ref))
	fmt.Fprintf(w, "Slide:     %d\n", s.SlideIndex)
	fmt.Fprintf(w, "Font size: %d%%\n", s.FontSize)
	fmt.Fprintf(w, "Blackout:  %t\n", s.IsBlackout)
	dimLabel.Fprintf(w, "Updated:   %s\n", time.Unix(s.UpdatedAt, 0).Format(time.RFC3339))
}
