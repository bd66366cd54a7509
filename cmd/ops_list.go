package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/renholm/switchboard/internal/presentation"
)

var opsListNamespace string

var opsListCmd = &cobra.Command{
	Use:   "ops:list",
	Short: "List operators in the dispatch table",
	Long: `List every operator committed from the configured manifest
directories, with its schema and kernel bindings, as JSON.

Fallbacks apply to every namespace and are always listed.

Examples:
  # List all operators
  switchboard ops:list

  # List operators in one namespace
  switchboard ops:list --namespace math

  # Extract operator names with jq
  switchboard ops:list | jq '.operators[].name'

  # Which dispatch keys does each operator bind?
  switchboard ops:list | jq '.operators[] | {name, keys: [.kernels[].key]}'`,
	RunE: runOpsList,
}

func init() {
	opsListCmd.Flags().StringVarP(&opsListNamespace, "namespace", "n", "", "Filter by namespace")
	rootCmd.AddCommand(opsListCmd)
}

func runOpsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Listing is read-only inspection, so the throwaway table skips the
	// journal even when journaling is enabled.
	d, cleanup, err := buildTable(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	infos := d.Snapshot()
	if opsListNamespace != "" {
		filtered := infos[:0]
		for _, info := range infos {
			if info.Name.Namespace == opsListNamespace {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}

	table := presentation.TableDTO{
		Operators: presentation.FromSnapshot(infos),
		Fallbacks: presentation.FromFallbacks(d.Fallbacks()),
	}

	formatter := presentation.NewFormatter(os.Stdout)
	return formatter.FormatTable(table)
}
