package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/observerkit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the observerkit config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Long: `Write a commented default config file.

Example:
  observerkit config init                          # .observerkit/config.yaml
  observerkit config init --path ~/.config/observerkit/config.yaml
  observerkit config init --force                  # overwrite an existing file`,
	RunE: runConfigInit,
}

var (
	configInitPath  string
	configInitForce bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configInitPath, "path", localConfigPath, "where to write the config file")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(configInitPath); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configInitPath)
	}
	if err := config.WriteDefaultConfig(configInitPath); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configInitPath)
	return nil
}
