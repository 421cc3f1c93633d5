package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartpreach/smartpreach-server/internal/remote"
)

type controlDef struct {
	use   string
	short string
	args  cobra.PositionalArgs
	build func(args []string) (remote.Command, error)
}

func newControlCmds(opts *options) []*cobra.Command {
	defs := []controlDef{
		{"next <sessionId>", "Step to the next verse", cobra.ExactArgs(1), fixed(remote.NextVerse{})},
		{"prev <sessionId>", "Step to the previous verse", cobra.ExactArgs(1), fixed(remote.PrevVerse{})},
		{"blackout <sessionId> [on|off]", "Toggle or set the blackout screen", cobra.RangeArgs(1, 2), buildBlackout},
		{"font-up <sessionId>", "Increase the font size one step", cobra.ExactArgs(1), fixed(remote.FontUp{})},
		{"font-down <sessionId>", "Decrease the font size one step", cobra.ExactArgs(1), fixed(remote.FontDown{})},
		{"font <sessionId> <percent>", "Set the font size", cobra.ExactArgs(2), buildFont},
		{"goto <sessionId> <reference>", "Show a scripture reference", cobra.MinimumNArgs(2), buildGoto},
		{"slide <sessionId> <index>", "Show a slide by index", cobra.ExactArgs(2), buildSlide},
	}

	cmds := make([]*cobra.Command, 0, len(defs))
	for _, def := range defs {
		def := def
		cmds = append(cmds, &cobra.Command{
			Use:   def.use,
			Short: def.short,
			Args:  def.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				command, err := def.build(args)
				if err != nil {
					return err
				}
				return runControl(cmd.Context(), opts, args[0], command)
			},
		})
	}
	return cmds
}

// runControl reads the current state so relative commands (next, font-up)
// have a base, then sends the command.
func runControl(ctx context.Context, opts *options, sessionID string, command remote.Command) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	poller := remote.NewPoller(opts.client(), sessionID, remote.PollerConfig{})
	if err := poller.Refresh(ctx); err != nil {
		return err
	}
	if err := poller.Send(ctx, command); err != nil {
		return err
	}

	state := poller.State()
	if opts.jsonOutput {
		printJSON(opts.out, map[string]any{
			"sessionId":         sessionID,
			"current_reference": state.Reference,
			"slide_index":       state.SlideIndex,
			"font_size":         state.FontSize,
			"is_blackout":       state.IsBlackout,
			"updated_at":        state.UpdatedAt,
		})
		return nil
	}
	okLabel.Fprint(opts.out, "OK ")
	fmt.Fprintln(opts.out, describeState(state))
	return nil
}

func fixed(c remote.Command) func([]string) (remote.Command, error) {
	return func([]string) (remote.Command, error) { return c, nil }
}

func buildBlackout(args []string) (remote.Command, error) {
	if len(args) == 1 {
		return remote.ToggleBlackout{}, nil
	}
	switch strings.ToLower(args[1]) {
	case "on", "true":
		return remote.SetBlackout{On: true}, nil
	case "off", "false":
		return remote.SetBlackout{On: false}, nil
	}
	return nil, fmt.Errorf("blackout: expected on or off, got %q", args[1])
}

func buildFont(args []string) (remote.Command, error) {
	size, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
	if err != nil {
		return nil, fmt.Errorf("font: %q is not a number", args[1])
	}
	return remote.SetFontSize{Size: size}, nil
}

func buildGoto(args []string) (remote.Command, error) {
	ref := strings.Join(args[1:], " ")
	if _, err := remote.ParseReference(ref); err != nil {
		return nil, err
	}
	return remote.SetReference{Reference: ref}, nil
}

func buildSlide(args []string) (remote.Command, error) {
	idx, err := strconv.Atoi(args[1])
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("slide: %q is not a valid index", args[1])
	}
	return remote.SetSlide{Index: idx}, nil
}

func describeState(s remote.State) string {
	ref := s.Reference
	if ref == "" {
		ref = "(no reference)"
	}
	blackout := ""
	if s.IsBlackout {
		blackout = " [blackout]"
	}
	return fmt.Sprintf("%s  slide %d  font %d%%%s", refLabel.Sprint(ref), s.SlideIndex, s.FontSize, blackout)
}
