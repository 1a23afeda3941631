package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memohai/anontalks/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "anontalks",
	Short: "Anonymous one-on-one chat bot",
	Long: `anontalks pairs strangers on Telegram for anonymous one-on-one
conversations and relays their messages while a conversation is active.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $CONFIG_PATH or config.toml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config, falling back to CONFIG_PATH.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
