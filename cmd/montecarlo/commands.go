package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wyfcoding/montecarlo/app"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/health"
)

const defaultConfigPath = "configs/config.toml"

type rootFlags struct {
	configPath string
	envFile    string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "montecarlo",
		Short:        "GBM Monte Carlo risk and option pricing engine",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if flags.envFile == "" {
				return nil
			}
			if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", flags.envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "path to config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file with APP_* overrides")

	root.AddCommand(newRunCommand(flags), newServeCommand(flags), newHealthcheckCommand())
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}
	if err := config.Load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunCommand(flags *rootFlags) *cobra.Command {
	var (
		paths     int
		seed      uint64
		printJSON bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Estimate parameters, simulate both measures and write the report once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("paths") {
				cfg.Simulation.Simulations = paths
			}
			if cmd.Flags().Changed("seed") {
				cfg.Simulation.Seed = seed
			}

			c, err := app.Build(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.Pipeline.Execute(cmd.Context())
			if err != nil {
				return err
			}
			if printJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&paths, "paths", 0, "override simulation.simulations")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "override simulation.seed")
	cmd.Flags().BoolVar(&printJSON, "print", false, "write the run outcome as JSON to stdout")
	return cmd
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health service and optional scheduled pipeline",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			c, err := app.Build(cfg)
			if err != nil {
				return err
			}
			a, err := c.ServeApp()
			if err != nil {
				c.Close()
				return err
			}
			return a.Run()
		},
	}
}

func newHealthcheckCommand() *cobra.Command {
	var (
		httpURL  string
		grpcAddr string
		service  string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server over HTTP and gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := health.NewRegistry(timeout)
			if httpURL != "" {
				registry.Register("http", health.HTTPChecker(httpURL))
			}
			if grpcAddr != "" {
				registry.Register("grpc", health.GRPCChecker(grpcAddr, service))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			rep := registry.Run(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if !rep.Healthy() {
				return errors.New("service unhealthy")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&httpURL, "http", "http://"+net.JoinHostPort("127.0.0.1", "8080")+"/healthz", "HTTP health endpoint, empty to skip")
	cmd.Flags().StringVar(&grpcAddr, "grpc", net.JoinHostPort("127.0.0.1", "9090"), "gRPC health address, empty to skip")
	cmd.Flags().StringVar(&service, "service", "montecarlo", "gRPC health service name")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "per-check timeout")
	return cmd
}
