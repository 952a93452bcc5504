package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yaswanthhh/ev-charge-optimizer/core/runs"
	_ "github.com/yaswanthhh/ev-charge-optimizer/infra/runstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted runs",
}

var runsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  getRun,
}

func init() {
	runsCmd.AddCommand(runsGetCmd)
	rootCmd.AddCommand(runsCmd)
}

func getRun(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid run id %q", args[0])
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := runs.Open(cfg.Store.Module())
	if err != nil {
		return err
	}
	defer store.Close()
	rec, err := store.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("run %d: %w", id, err)
	}
	return printJSON(cmd.OutOrStdout(), rec)
}
