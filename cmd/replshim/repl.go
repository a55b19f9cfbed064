package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/replshim/executor"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive REPL with persistent state",
		Long: `Start an interactive REPL backed by one long-lived interpreter.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Ctrl+C interrupts a running execution and restarts the interpreter.
Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
		RunE: runRepl,
	}
	addSessionFlags(cmd.Flags())
	cmd.Flags().String("history", "", "History file path (default: ~/.replshim_history)")
	return cmd
}

func runRepl(cmd *cobra.Command, args []string) error {
	langFlag, _ := cmd.Flags().GetString("lang")
	historyFile, _ := cmd.Flags().GetString("history")

	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".replshim_history")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	lang, err := resolveLanguage(a.registry, langFlag, "")
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            lang + "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	if version, ok := a.session.InstalledVersion(context.Background(), lang); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "replshim %s %s (type 'exit' to quit, Ctrl+D to exit)\n", lang, version)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "replshim %s (type 'exit' to quit, Ctrl+D to exit)\n", lang)
	}

	prompt := lang + "> "
	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(prompt)
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(prompt)
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = printEvents(cmd, a.session.Stream(ctx, executor.Request{Language: lang, Code: line}), false)
		stop()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), highlight(cmd.ErrOrStderr(), red, "Error: "+err.Error()))
		}
	}
}
