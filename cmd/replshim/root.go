package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/replshim/executor"
	"github.com/caffeineduck/replshim/language/r"
	"github.com/caffeineduck/replshim/language/ruby"
	"github.com/caffeineduck/replshim/language/shell"
	"github.com/spf13/cobra"
)

var languageNames = []string{"r", "ruby", "shell"}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "replshim",
		Short: "Run code in persistent R, Ruby and shell interpreters",
		Long: `replshim - stream code into long-lived interpreter processes.

Each language gets one interpreter per session. Code is written to the
interpreter's stdin followed by an end-of-execution marker, and output is
relayed line by line as it is produced.

Languages: r, ruby, shell`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newRunCmd(), newReplCmd(), newServeCmd(), newLanguagesCmd())
	return rootCmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every command needs: resolved config, the language registry
// and a session to run code in.
type app struct {
	cfg      config
	logger   *slog.Logger
	registry *executor.Registry
	session  *executor.Session
}

func newApp(cmd *cobra.Command) (*app, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(newViper(), file, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	registry := newRegistry(cfg)
	opts := []executor.SessionOption{executor.WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, executor.WithTimeout(cfg.Timeout))
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		session:  executor.NewSession(registry, opts...),
	}, nil
}

func (a *app) Close() error {
	return a.session.Close()
}

func newRegistry(cfg config) *executor.Registry {
	return executor.NewRegistry(
		r.New(r.WithExecutable(cfg.Executables["r"])),
		ruby.New(ruby.WithExecutable(cfg.Executables["ruby"])),
		shell.New(shell.WithExecutable(cfg.Executables["shell"])),
	)
}

// resolveLanguage maps a --lang value or a file extension to a registered
// language name.
func resolveLanguage(registry *executor.Registry, langFlag, filename string) (string, error) {
	lang := strings.ToLower(langFlag)

	if lang == "" && filename != "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".r":
			lang = "r"
		case ".rb":
			lang = "ruby"
		case ".sh":
			lang = "shell"
		}
	}

	switch lang {
	case "":
		return "", fmt.Errorf("language required: use --lang %s", strings.Join(registry.List(), ", --lang "))
	case "rb":
		lang = "ruby"
	case "sh", "bash":
		lang = "shell"
	}

	if _, ok := registry.Get(lang); !ok {
		return "", fmt.Errorf("unknown language %q: use one of %s", lang, strings.Join(registry.List(), ", "))
	}
	return lang, nil
}
