package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/config"
	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/logging"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "coffeeapi",
	Short: "Coffee shop drinks catalog API",
	Long: `coffeeapi serves the drinks catalog over JSON/HTTP. Listing drinks is public;
the detailed recipes and every change require a bearer token whose permissions
claim grants the matching permission.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logging.Setup(cfg.Debug)
		if cfgFile != "" {
			slog.Debug("loaded config file", "path", viper.ConfigFileUsed())
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: COFFEE_DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: COFFEE_SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: COFFEE_DEBUG)")

	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("db-url"))
	_ = viper.BindPFlag("server_addr", rootCmd.PersistentFlags().Lookup("server-addr"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
