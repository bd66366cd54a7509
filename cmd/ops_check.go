package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/renholm/switchboard/internal/manifest"
	"github.com/renholm/switchboard/internal/presentation"
)

var opsCheckCmd = &cobra.Command{
	Use:   "ops:check",
	Short: "Validate manifests without committing them",
	Long: `Load every configured manifest directory and dry-run the
registrations against a throwaway table. The real dispatch table and
the journal are never touched.

Exits non-zero when any manifest fails to parse, references an unknown
kernel, or would collide during registration.

Examples:
  # Validate all configured manifest directories
  switchboard ops:check

  # Validate a specific directory
  switchboard ops:check --dir ./staging-manifests`,
	RunE: runOpsCheck,
}

var opsCheckDir string

func init() {
	opsCheckCmd.Flags().StringVar(&opsCheckDir, "dir", "", "Check a single directory instead of the configured ones")
	rootCmd.AddCommand(opsCheckCmd)
}

func runOpsCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opsCheckDir != "" {
		cfg.ManifestDirs = []string{opsCheckDir}
	}

	files, err := loadManifestFiles(ctx)
	if err != nil {
		return err
	}
	if err := manifest.Check(ctx, files); err != nil {
		return err
	}

	operators := 0
	for _, f := range files {
		operators += len(f.Operators)
	}

	result := struct {
		Status    string `json:"status"`
		Files     int    `json:"files"`
		Operators int    `json:"operators"`
	}{"ok", len(files), operators}

	formatter := presentation.NewFormatter(os.Stdout)
	return formatter.FormatResult(result)
}
