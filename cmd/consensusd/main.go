package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/config"
	"github.com/cuemby/mysticonsensus/pkg/log"
	"github.com/cuemby/mysticonsensus/pkg/metrics"
	"github.com/cuemby/mysticonsensus/pkg/node"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "consensusd",
	Short:   "mysticonsensus - a DAG-BFT consensus and object-execution node",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"consensusd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run this authority's consensus node",
	Long: `Run opens (or creates) the node's bbolt-backed storage, seeds the
DAG with genesis blocks for the configured committee, and starts the
metrics/health HTTP server. It does not connect to any network transport
by itself: feeding blocks into the DAG and driving commits is left to
whatever wires this process into a real network.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		committeeSize, _ := cmd.Flags().GetInt("committee-size")
		authorityIndex, _ := cmd.Flags().GetInt("authority-index")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if committeeSize > 0 {
			cfg.CommitteeSize = committeeSize
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		authorities := make([]block.Authority, cfg.CommitteeSize)
		for i := range authorities {
			authorities[i] = block.Authority{Stake: 1}
		}
		committee := block.NewCommittee(authorities)

		n, err := node.New(cfg, block.AuthorityIndex(authorityIndex), committee, nil)
		if err != nil {
			return fmt.Errorf("build node: %w", err)
		}

		if err := n.Start(context.Background()); err != nil {
			return fmt.Errorf("start node: %w", err)
		}
		fmt.Printf("node started: authority %d of %d, data dir %s\n", authorityIndex, cfg.CommitteeSize, cfg.DataDir)

		metrics.SetVersion(Version)
		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("metrics endpoint: http://%s/metrics\n", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nshutting down...")

		if err := n.Stop(); err != nil {
			return fmt.Errorf("stop node: %w", err)
		}
		fmt.Println("shutdown complete")
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to a yaml config file (flags below override it)")
	runCmd.Flags().String("data-dir", "./data", "Directory holding the node's bbolt database")
	runCmd.Flags().Int("committee-size", 0, "Number of authorities in the committee (0 keeps the config/default value)")
	runCmd.Flags().Int("authority-index", 0, "This process's own index into the committee")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready, /live on")
}
