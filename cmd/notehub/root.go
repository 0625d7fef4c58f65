package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/notehub/internal/api"
	"github.com/nhle/notehub/internal/app"
	"github.com/nhle/notehub/internal/credential"
	"github.com/nhle/notehub/internal/identity"
	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/realtime"
	"github.com/nhle/notehub/internal/session"
	gosync "github.com/nhle/notehub/internal/sync"
	"github.com/nhle/notehub/internal/theme"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
}

func (g *globalFlags) load() (*model.AppConfig, error) {
	return model.LoadConfig(g.configPath)
}

// logConfig returns cfg.Log with the --verbose override applied. The
// override never reaches cfg, so it is not saved back to disk.
func (g *globalFlags) logConfig(cfg *model.AppConfig) model.LogConfig {
	lc := cfg.Log
	if g.verbose {
		lc.Level = "debug"
	}
	return lc
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "notehub",
		Short:         "Live notifications from the notes portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", model.DefaultConfigPath(), "config file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newDevServerCommand(flags),
		newLogoutCommand(flags),
	)
	return cmd
}

// runClient wires the client together and runs the terminal UI until
// the user quits.
func runClient(ctx context.Context, flags *globalFlags) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	theme.Apply(cfg.Display.Theme)

	logg, err := logging.NewFile("client", flags.logConfig(cfg))
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	client, err := api.NewClient(api.Options{
		BaseURL:        cfg.Server.BaseURL,
		Timeout:        cfg.Server.RequestTimeout(),
		BreakerTimeout: cfg.Server.BreakerTimeout(),
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	creds, err := credential.OpenKeyring()
	if err != nil {
		return err
	}
	provider := identity.NewProvider(creds, client, logg)
	if _, err := provider.Restore(cfg.LastIdentity); err != nil {
		logg.Error(context.Background(), "restoring session failed", err)
	}

	manager := realtime.NewManager(realtime.Options{
		URL:                  cfg.Server.WebsocketURL(),
		Jar:                  client.Jar(),
		ReconnectDelay:       cfg.Realtime.ReconnectDelay(),
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		Logger:               logg,
	})

	bridge := gosync.New()
	controller := session.NewController(client, manager, bridge, logg)
	unfollow := controller.Follow(provider)
	defer func() {
		unfollow()
		bridge.Stop()
		if err := controller.Close(); err != nil {
			logg.Error(context.Background(), "closing session failed", err)
		}
	}()

	root := app.New(app.Options{
		Session:       controller,
		Auth:          provider,
		Bridge:        bridge,
		Logger:        logg,
		AlertDuration: cfg.Display.AlertDuration(),
		LastIdentity:  cfg.LastIdentity,
		OnLogin: func(id model.Identity) {
			cfg.LastIdentity = &id
			if err := model.SaveConfig(flags.configPath, cfg); err != nil {
				logg.Error(context.Background(), "saving config failed", err)
			}
		},
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
