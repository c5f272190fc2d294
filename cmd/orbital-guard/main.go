// Command orbital-guard propagates a satellite and debris catalog, watches a
// focus object for close approaches and serves the results over HTTP and
// gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/orbital-guard/internal/config"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:           "orbital-guard",
		Short:         "Orbital propagation and conjunction monitoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "Path to a config file (default: ./orbital-guard.yaml if present)")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "Log format: text or json")
	root.PersistentFlags().String("catalog-source", "none", "Catalog source: http, tle, file, none")
	root.PersistentFlags().String("catalog-url", "", "Satellite catalog URL (http, tle)")
	root.PersistentFlags().String("catalog-path", "", "Catalog file path (file)")
	bindFlags(c.v, root.PersistentFlags().Lookup, map[string]string{
		"log.level":      "log-level",
		"log.format":     "log-format",
		"catalog.source": "catalog-source",
		"catalog.url":    "catalog-url",
		"catalog.path":   "catalog-path",
	})

	root.AddCommand(
		newServeCmd(c),
		newSimulateCmd(c),
		newEvaluateCmd(c),
	)
	return root
}

// load reads the configuration and builds the process logger.
func (c *cli) load() (config.Config, logging.Logger, error) {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return cfg, log, nil
}
