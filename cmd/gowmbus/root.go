package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/witoldo7/gowmbus/internal/config"
	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/driver/builtin"
	"github.com/witoldo7/gowmbus/internal/driverdef"
	"github.com/witoldo7/gowmbus/internal/logging"
)

// app is what every subcommand shares once flags and config are resolved.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	registry *driver.Registry
	warnings []driver.Warning
}

type rootOptions struct {
	configPath string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}
	root := &cobra.Command{
		Use:           "gowmbus",
		Short:         "Decode Wireless M-Bus telegrams",
		Long:          "gowmbus decodes Wireless M-Bus meter telegrams with a table of meter drivers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text or json)")
	flags.StringSlice("drivers", nil, "extra driver definition files or directories")
	_ = opts.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = opts.v.BindPFlag("drivers.search_paths", flags.Lookup("drivers"))

	root.AddCommand(
		newAnalyzeCmd(opts),
		newDriversCmd(opts),
		newLintCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// setup loads the config, builds the logger on stderr and registers the bundled
// drivers plus every driver definition found on the search paths.
func (o *rootOptions) setup(stderr io.Writer) (*app, error) {
	cfg, err := config.Load(o.configPath, o.v)
	if err != nil {
		return nil, err
	}
	log := logging.NewWithWriter(cfg.Log, stderr)

	reg, err := builtin.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("register builtin drivers: %w", err)
	}
	if len(cfg.Drivers.SearchPaths) > 0 {
		loader, err := driverdef.NewLoader()
		if err != nil {
			return nil, err
		}
		entries, err := loader.LoadPaths(cfg.Drivers.SearchPaths...)
		if err != nil {
			return nil, fmt.Errorf("load driver definitions: %w", err)
		}
		if err := reg.RegisterAll(entries...); err != nil {
			return nil, fmt.Errorf("register driver definitions: %w", err)
		}
		log.WithField("count", len(entries)).Info("loaded driver definitions")
	}

	a := &app{cfg: cfg, log: log, registry: reg}
	if cfg.Drivers.Lint {
		a.warnings = reg.Lint()
		for _, w := range a.warnings {
			log.WithFields(logrus.Fields{"driver": w.Driver, "field": w.Field}).Warn(w.Message)
		}
	}
	return a, nil
}
