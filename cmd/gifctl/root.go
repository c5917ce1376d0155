package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/devlife-client/internal/config"
	"github.com/Sternrassler/devlife-client/pkg/client"
	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/Sternrassler/devlife-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share once the root command has run.
type app struct {
	cfgFile  string
	logLevel string
	pretty   bool

	cfg    *config.Config
	redis  *redis.Client
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "gifctl",
		Short: "Browse developer GIFs from the terminal",
		Long: `gifctl talks to the developerslife GIF API through a Redis-backed
cache and rate limiter shared with gif-proxy.

Example usage:
  gifctl browse top          # Browse the top section interactively
  gifctl list latest 2       # Print page 2 of the latest section
  gifctl warm hot --pages 10 # Prefetch ten pages of hot into the cache`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./configs/config.yaml or ./config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "human readable logs")

	root.AddCommand(newBrowseCmd(a), newListCmd(a), newWarmCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = a.pretty
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	rdb := redis.NewClient(cfg.RedisOptions())
	pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	c, err := client.New(cfg.ClientConfig(rdb))
	if err != nil {
		rdb.Close()
		return fmt.Errorf("create client: %w", err)
	}

	a.cfg = cfg
	a.redis = rdb
	a.client = c
	return nil
}

func (a *app) close() error {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// sectionArg parses args[i], falling back to def when absent.
func sectionArg(args []string, i int, def gif.Section) (gif.Section, error) {
	if len(args) <= i {
		return def, nil
	}
	return gif.ParseSection(args[i])
}
