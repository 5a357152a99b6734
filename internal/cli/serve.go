package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AndrewDell/3AI/internal/agent"
	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/gateway"
	"github.com/AndrewDell/3AI/internal/logging"
	"github.com/AndrewDell/3AI/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent fleet and the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create data directories: %w", err)
			}

			// Rebuild the logger from config; the flag still wins on level.
			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			logFile := cfg.Logging.File
			if logFile != "" && !filepath.IsAbs(logFile) {
				logFile = filepath.Join(paths.Logs, logFile)
			}
			fullLog, closer, err := logging.Open(level, logFile, cfg.Logging.Console)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			log = fullLog

			registry, err := agent.FromConfig(&cfg, store.NewMemorySnapshotStore(), log)
			if err != nil {
				return err
			}
			defer registry.StopAll()

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			started := 0
			for _, entry := range cfg.Agents.List {
				if !entry.AutoStart {
					continue
				}
				a, err := registry.Get(entry.ID)
				if err != nil {
					return err
				}
				a.Start()
				started++
			}
			log.Info().
				Int("agents", registry.Count()).
				Int("started", started).
				Msg("agent fleet ready")

			srv := gateway.New(cfg, registry, log)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}
