package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renholm/switchboard/internal/config"
)

var configAddDirCmd = &cobra.Command{
	Use:   "config:add-dir <directory>",
	Short: "Add a manifest directory to the config",
	Long: `Add a directory to the manifest_dirs list in the config file.
Comments and other settings in the file are preserved. Adding a
directory that is already listed is a no-op.

Example:
  switchboard config:add-dir ./extra-manifests`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigAddDir,
}

func init() {
	rootCmd.AddCommand(configAddDirCmd)
}

func runConfigAddDir(cmd *cobra.Command, args []string) error {
	dir := args[0]
	path := configFilePath()

	for _, existing := range cfg.ManifestDirs {
		if existing == dir {
			fmt.Printf("%s is already in %s\n", dir, path)
			return nil
		}
	}

	if err := config.AddManifestDir(path, dir, cfg.ManifestDirs); err != nil {
		return err
	}

	fmt.Printf("Added %s to %s\n", dir, path)
	return nil
}
