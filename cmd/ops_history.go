package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/renholm/switchboard/internal/journal"
	"github.com/renholm/switchboard/internal/presentation"
)

var (
	opsHistoryOp    string
	opsHistoryKind  string
	opsHistoryLimit int
)

var opsHistoryCmd = &cobra.Command{
	Use:   "ops:history",
	Short: "Show the registration journal",
	Long: `Show journaled dispatch table mutations, newest first. Every
registration and release recorded by a journaled process (watch mode,
or a call with journaling enabled) is one row.

The added and removed rows of one registration share a registration_id,
so a release can be traced back to the registration it undid.

Examples:
  # Show the most recent mutations
  switchboard ops:history --limit 20

  # History of one operator
  switchboard ops:history --op math::add

  # Only fallback registrations
  switchboard ops:history --kind fallback

  # Which registrations were never released?
  switchboard ops:history | jq 'group_by(.registration_id) | map(select(length == 1)) | flatten'`,
	RunE: runOpsHistory,
}

func init() {
	opsHistoryCmd.Flags().StringVar(&opsHistoryOp, "op", "", "Filter by qualified operator name, e.g. math::add")
	opsHistoryCmd.Flags().StringVar(&opsHistoryKind, "kind", "", "Filter by registration kind (namespace, def, impl, fallback)")
	opsHistoryCmd.Flags().IntVar(&opsHistoryLimit, "limit", 0, "Cap the number of rows returned (0 means all)")
	rootCmd.AddCommand(opsHistoryCmd)
}

func runOpsHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	switch opsHistoryKind {
	case "", "namespace", "def", "impl", "fallback":
	default:
		return fmt.Errorf("unknown kind %q (want namespace, def, impl, or fallback)", opsHistoryKind)
	}

	path := journalPathFrom(cfg.Journal, resolveDataDir())
	db, err := journal.NewDB(path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() { _ = db.Close() }()

	entries, err := db.Recorder().List(ctx, journal.Filter{
		Operator: opsHistoryOp,
		Kind:     opsHistoryKind,
		Limit:    opsHistoryLimit,
	})
	if err != nil {
		return fmt.Errorf("listing journal: %w", err)
	}

	formatter := presentation.NewFormatter(os.Stdout)
	return formatter.FormatHistory(presentation.FromJournalEntries(entries))
}
