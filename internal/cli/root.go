// Package cli implements the remote command line: it starts, drives and
// watches live sessions through the session API.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/smartpreach/smartpreach-server/internal/remote"
)

const (
	serverEnv     = "SMARTPREACH_SERVER"
	defaultServer = "http://localhost:8080"
)

var (
	okLabel    = color.New(color.FgGreen)
	errorLabel = color.New(color.FgRed)
	dimLabel   = color.New(color.FgHiBlack)
	refLabel   = color.New(color.FgCyan, color.Bold)
)

type options struct {
	server     string
	jsonOutput bool
	timeout    time.Duration
	out        io.Writer
}

func (o *options) client() *remote.Client {
	return remote.NewClient(o.server)
}

// NewRootCommand builds the command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	root := &cobra.Command{
		Use:   "remote [command] [flags]",
		Short: "Control live presentation sessions",
		Long: `remote starts, drives and watches live presentation sessions.

Examples:
  # Start a session and print its join link
  remote start

  # Follow a session as it changes
  remote watch abcDEF123456 --lookup

  # Step to the next verse
  remote next abcDEF123456`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.SetOut(out)

	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "Server base URL (env "+serverEnv+")")
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for one-shot requests")

	root.AddCommand(
		newStartCmd(opts),
		newShowCmd(opts),
		newEndCmd(opts),
		newWatchCmd(opts),
	)
	for _, c := range newControlCmds(opts) {
		root.AddCommand(c)
	}

	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	root := NewRootCommand(os.Stdout)
	if err := root.Execute(); err != nil {
		jsonOutput, _ := root.PersistentFlags().GetBool("json")
		if jsonOutput {
			printJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", describeError(err))
		}
		os.Exit(1)
	}
}

func describeError(err error) string {
	if errors.Is(err, remote.ErrSessionNotFound) {
		return "session not found (it has ended or expired)"
	}
	return err.Error()
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
	}
}
