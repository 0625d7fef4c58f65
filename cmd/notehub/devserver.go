package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/notehub/internal/devserver"
	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/store"
)

func newDevServerCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local portal that serves the notification API and live channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.DevServer.Addr
			}

			logg := logging.New(logging.Options{
				Component: "devserver",
				Level:     logging.ParseLevel(flags.logConfig(cfg).Level),
				Format:    "console",
				Output:    os.Stderr,
			})

			if cfg.DevServer.DBPath != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(cfg.DevServer.DBPath), 0o755); err != nil {
					return fmt.Errorf("creating data directory: %w", err)
				}
			}
			st, err := store.NewSQLiteStore(cfg.DevServer.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return devserver.NewServer(st, logg).Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to devserver.addr)")
	return cmd
}
