package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"time"

	"github.com/caffeineduck/replshim/executor"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	red  = color.New(color.FgRed).SprintFunc()
	gray = color.New(color.FgHiBlack).SprintFunc()
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run code once and stream its output",
		Long: `Execute R, Ruby or shell code in a fresh interpreter.

Code can be provided via:
  - File argument: replshim run script.rb
  - Inline flag: replshim run -l ruby -c 'puts 1+1'
  - Stdin: echo 'cat(1+1)' | replshim run -l r`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	addSessionFlags(cmd.Flags())
	cmd.Flags().Bool("active-lines", false, "Print active line markers to stderr")
	return cmd
}

func addSessionFlags(fs *pflag.FlagSet) {
	fs.StringP("lang", "l", "", "Language: r, ruby, shell (default: from file extension)")
	fs.Duration("timeout", 0, "Execution timeout (0 = none)")
}

func runRun(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")
	langFlag, _ := cmd.Flags().GetString("lang")
	showActive, _ := cmd.Flags().GetBool("active-lines")

	var source, filename string
	switch {
	case code != "":
		source = code
	case len(args) > 0:
		filename = args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			return err
		}
		source = string(data)
	default:
		in := cmd.InOrStdin()
		if isTerminal(in) {
			return cmd.Help()
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		source = string(data)
		if source == "" {
			return cmd.Help()
		}
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	lang, err := resolveLanguage(a.registry, langFlag, filename)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return printEvents(cmd, a.session.Stream(ctx, executor.Request{Language: lang, Code: source}), showActive)
}

// printEvents writes console lines to the command's stdout and stderr as
// they arrive and returns the terminal error, if any.
func printEvents(cmd *cobra.Command, events iter.Seq[executor.Event], showActive bool) error {
	start := time.Now()
	for ev := range events {
		switch ev.Kind {
		case executor.EventOutput:
			if ev.Stream == executor.Stderr {
				fmt.Fprintln(cmd.ErrOrStderr(), highlight(cmd.ErrOrStderr(), red, ev.Text))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), ev.Text)
		case executor.EventActiveLine:
			if showActive {
				fmt.Fprintln(cmd.ErrOrStderr(), highlight(cmd.ErrOrStderr(), gray, fmt.Sprintf("-> line %d", ev.Line)))
			}
		case executor.EventError:
			return fmt.Errorf("after %v: %w", time.Since(start).Round(time.Millisecond), ev.Err)
		}
	}
	return nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// highlight colors text only when w is a terminal.
func highlight(w io.Writer, paint func(...any) string, text string) string {
	if !isTerminal(w) {
		return text
	}
	return paint(text)
}
