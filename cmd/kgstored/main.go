// kgstored is the fact-store daemon: it opens the badger-backed store and
// serves the RPC surface over a Unix domain socket until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/wbrown/janus-kgstore/kg/rpc"
	"github.com/wbrown/janus-kgstore/kg/service"
	"github.com/wbrown/janus-kgstore/kg/storage"
)

type daemonConfig struct {
	DBPath         string `mapstructure:"db-path"`
	SocketPath     string `mapstructure:"socket-path"`
	MaxAtomicFacts int    `mapstructure:"max-atomic-facts"`
	ChunkSize      int    `mapstructure:"chunk-size"`
}

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "kgstored",
		Short:         "Versioned graph fact-store daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (daemonConfig, error) {
	var cfg daemonConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("KGSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "kgstore", "kgstore.db"))
	v.SetDefault("socket-path", defaultSocketPath(home))
	v.SetDefault("max-atomic-facts", service.DefaultMaxAtomicFacts)
	v.SetDefault("chunk-size", service.DefaultChunkSize)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "kgstore", "config.yml"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxAtomicFacts <= 0 {
		return cfg, fmt.Errorf("invalid max-atomic-facts: %d", cfg.MaxAtomicFacts)
	}
	return cfg, nil
}

func defaultSocketPath(home string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "kgstore", "kgstore.sock")
	}
	return filepath.Join(home, ".local", "state", "kgstore", "kgstore.sock")
}

func run(cfg daemonConfig) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.New(store,
		service.WithMaxAtomicFacts(cfg.MaxAtomicFacts),
		service.WithChunkSize(cfg.ChunkSize),
	)
	server := rpc.NewServer(cfg.SocketPath, svc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("kgstored: shutting down")
		server.Stop()
		return nil
	})

	log.Printf("kgstored: store %s, socket %s", cfg.DBPath, cfg.SocketPath)
	return g.Wait()
}
