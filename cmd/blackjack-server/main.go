// Command blackjack-server runs the multiplayer blackjack TCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cyberinferno/blackjack-server/internal/config"
	"github.com/cyberinferno/blackjack-server/internal/server"
)

var (
	cfgFile  string
	logLevel string
	pretty   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "blackjack-server",
		Short:        "Multiplayer blackjack TCP server",
		SilenceUsage: true,
		RunE:         run,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to config file")
	flags.StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&pretty, "pretty", false, "human-readable log output")

	flags.String("listen", config.Default().Host, "listen address")
	flags.Int("port", config.Default().Port, "listen port")
	flags.Int("rooms", config.Default().Rooms, "number of game rooms")
	flags.Int("max-sessions", config.Default().MaxSessions, "maximum concurrent connections")
	flags.Int("fault-limit", config.Default().FaultLimit, "protocol violations tolerated per session")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	log, err := setupLogger()
	if err != nil {
		return err
	}

	v := viper.New()
	bindings := map[string]string{
		"host":         "listen",
		"port":         "port",
		"rooms":        "rooms",
		"max_sessions": "max-sessions",
		"fault_limit":  "fault-limit",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	s := server.New(cfg, log)
	if err := s.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", cfg.Addr()).Int("rooms", cfg.Rooms).Msg("serving")
	return s.Run(ctx)
}

func setupLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	var log zerolog.Logger
	if pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}

	return log.Level(level).With().Timestamp().Logger(), nil
}
