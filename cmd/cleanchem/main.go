// ABOUTME: Entry point for the cleanchem server binary
// ABOUTME: Cobra commands to serve, create tables, check the setup and print the version

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/config"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/server"
	"github.com/LucasAlbuquerqueBr/CleanChem-Guard/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _                       _
   ___| | ___  __ _ _ __   ___| |__   ___ _ __ ___
  / __| |/ _ \/ _' | '_ \ / __| '_ \ / _ \ '_ ' _ \
 | (__| |  __/ (_| | | | | (__| | | |  __/ | | | | |
  \___|_|\___|\__,_|_| |_|\___|_| |_|\___|_| |_| |_|
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "cleanchem",
		Short:         "Small social app: gallery, direct messages and an assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default $CLEANCHEM_CONFIG or ./config.yaml)")

	loadConfig := func() (*config.Config, string, error) {
		path := config.ResolvePath(configFlag)
		cfg, err := config.Load(path)
		if err != nil {
			return nil, path, fmt.Errorf("loading config: %w", err)
		}
		return cfg, path, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the web server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, path, err := loadConfig()
				if err != nil {
					return err
				}
				return runServe(cmd.Context(), cfg, path)
			},
		},
		&cobra.Command{
			Use:   "init-tables",
			Short: "Create missing tables and repair their headers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := loadConfig()
				if err != nil {
					return err
				}
				return runInitTables(cmd.Context(), cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Validate the configuration and read every table",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, path, err := loadConfig()
				if err != nil {
					return err
				}
				return runCheck(cmd.Context(), cmd, cfg, path)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "cleanchem %s\n", version)
			},
		},
	)
	return root
}

func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if configPath == "" {
		configPath = "(defaults)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s\n", cfg.Store.Backend)
	green.Print("    ▶ ")
	fmt.Printf("Uploads:   %s\n", cfg.Uploads.Backend)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.I18n.Watch {
		yellow.Println("    ▶ Watching locale catalogs")
	}
	fmt.Println()

	logger.Info("starting cleanchem", "config", configPath, "http_addr", cfg.Server.HTTPAddr)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

func runInitTables(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger := setupLogger(cfg.Logging)

	s, err := server.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := store.EnsureSchema(ctx, s); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	for _, table := range store.Tables {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Sprint("✓"), table.Name)
	}
	return nil
}

// runCheck reads every table and reports its row count. A missing table
// is a failure; run init-tables first.
func runCheck(ctx context.Context, cmd *cobra.Command, cfg *config.Config, configPath string) error {
	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	if configPath == "" {
		configPath = "(defaults)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s config %s\n", green.Sprint("✓"), configPath)
	if cfg.Session.Secret == config.DefaultSecret {
		fmt.Fprintf(cmd.OutOrStdout(), "%s session secret is the development default\n", color.YellowString("!"))
	}

	s, err := server.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	failed := 0
	for _, table := range store.Tables {
		records, err := s.ScanAll(ctx, table.Name)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", red.Sprint("✗"), table.Name, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d rows)\n", green.Sprint("✓"), table.Name, len(records))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tables unreadable", failed, len(store.Tables))
	}
	return nil
}
