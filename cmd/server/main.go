package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/pkg/logging"
)

type rootOptions struct {
	configPath string

	httpAddr   string
	grpcAddr   string
	store      string
	sqlitePath string
	mysqlDSN   string
	redisAddr  string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "stock-ledger",
		Short:         "Material stock ledger",
		Long:          "Records material inflows and outflows and keeps the stock on hand.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.httpAddr, "http-addr", "", "HTTP listen address")
	flags.StringVar(&opts.grpcAddr, "grpc-addr", "", "gRPC listen address")
	flags.StringVar(&opts.store, "store", "", "store kind (memory|sqlite|mysql|redis)")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database file")
	flags.StringVar(&opts.mysqlDSN, "mysql-dsn", "", "MySQL DSN")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (text|json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

// loadConfig resolves the configuration for cmd and installs the logger.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	overrides := []struct {
		name string
		src  string
		dst  *string
	}{
		{"http-addr", o.httpAddr, &cfg.HTTPAddr},
		{"grpc-addr", o.grpcAddr, &cfg.GRPCAddr},
		{"store", o.store, &cfg.Store.Kind},
		{"sqlite-path", o.sqlitePath, &cfg.Store.SQLitePath},
		{"mysql-dsn", o.mysqlDSN, &cfg.Store.MySQLDSN},
		{"redis-addr", o.redisAddr, &cfg.Store.RedisAddr},
		{"log-level", o.logLevel, &cfg.Log.Level},
		{"log-format", o.logFormat, &cfg.Log.Format},
	}
	for _, ov := range overrides {
		if flags.Changed(ov.name) {
			*ov.dst = ov.src
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
