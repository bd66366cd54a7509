package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/renholm/switchboard/internal/config"
)

var (
	configInitPath  string
	configInitForce bool
)

var configInitCmd = &cobra.Command{
	Use:   "config:init",
	Short: "Write a default config file",
	Long: `Write the default configuration to .switchboard/config.yaml with
every setting documented and commented. Existing files are left alone
unless --force is given.

Examples:
  # Create .switchboard/config.yaml in the current directory
  switchboard config:init

  # Create the user-level config instead
  switchboard config:init --path ~/.config/switchboard/config.yaml`,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", ".switchboard/config.yaml", "Where to write the config file")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if !configInitForce {
		if _, err := os.Stat(configInitPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configInitPath)
		}
	}

	if err := config.WriteDefaultConfig(configInitPath); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", configInitPath)
	return nil
}
