package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// config is the resolved CLI configuration: flags override environment
// (REPLSHIM_*), which overrides the config file.
type config struct {
	Timeout     time.Duration
	LogLevel    string
	Executables map[string]string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("REPLSHIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("log-level", "warn")
	return v
}

// bindFlags binds every flag in fs that viper knows a key for.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		switch f.Name {
		case "timeout", "log-level":
			if bindErr := v.BindPFlag(f.Name, f); bindErr != nil && err == nil {
				err = bindErr
			}
		}
	})
	return err
}

func loadConfig(v *viper.Viper, file string, fs *pflag.FlagSet) (config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	if err := bindFlags(v, fs); err != nil {
		return config{}, fmt.Errorf("bind flags: %w", err)
	}

	cfg := config{
		Timeout:     v.GetDuration("timeout"),
		LogLevel:    v.GetString("log-level"),
		Executables: make(map[string]string),
	}
	for _, name := range languageNames {
		if exe := v.GetString("languages." + name + ".executable"); exe != "" {
			cfg.Executables[name] = exe
		}
	}
	return cfg, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
