package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/renholm/switchboard/internal/dispatch"
	"github.com/renholm/switchboard/internal/presentation"
	"github.com/renholm/switchboard/internal/schema"
)

var (
	callKey  string
	callArgs string
)

var callCmd = &cobra.Command{
	Use:   "call <operator>",
	Short: "Dispatch one operator call",
	Long: `Build the dispatch table from the configured manifests, resolve
the operator under the given dispatch key, and invoke the kernel with
the given arguments.

The operator name must be qualified ("math::add") and may carry an
overload ("math::add.scalar"). Arguments are a JSON array; numbers
arrive as floats, which is what the builtin arithmetic kernels take.

Examples:
  # Call with the catch-all kernel
  switchboard call math::add --args '[1, 2]'

  # Pin a dispatch key
  switchboard call math::add --key cpu --args '[1, 2]'

  # Extract just the outputs with jq
  switchboard call text::upper --args '["hi"]' | jq '.outputs[0]'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&callKey, "key", "k", "", "Dispatch key to resolve under (default: catch-all)")
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "", "Arguments as a JSON array, e.g. '[1, 2]'")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	name, err := schema.ParseName(args[0])
	if err != nil {
		return err
	}
	if name.Namespace == "" {
		return fmt.Errorf("operator name must be qualified, e.g. math::add")
	}
	key, err := dispatch.ParseKey(callKey)
	if err != nil {
		return err
	}
	inputs, err := parseCallArgs(callArgs)
	if err != nil {
		return err
	}

	// One-shot tables are throwaway, so they are not journaled.
	d, cleanup, err := buildTable(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := d.Lookup(name, key)
	if err != nil {
		return err
	}
	outputs, err := d.Call(ctx, name, key, inputs)
	if err != nil {
		return err
	}

	formatter := presentation.NewFormatter(os.Stdout)
	return formatter.FormatResult(presentation.FromResolution(res, outputs))
}

// parseCallArgs decodes the --args JSON array. An empty string means no
// arguments.
func parseCallArgs(raw string) ([]any, error) {
	if raw == "" {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parsing --args: %w (want a JSON array, e.g. '[1, 2]')", err)
	}
	return args, nil
}
