package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"carenav/internal/model"
)

var (
	planDate      string
	planEmployees []string
	planNoLocked  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one planning pass against the configured store and print the result",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planDate, "date", time.Now().Format(model.DateLayout), "plan date (YYYY-MM-DD)")
	planCmd.Flags().StringSliceVar(&planEmployees, "employee", nil, "restrict to these employee ids")
	planCmd.Flags().BoolVar(&planNoLocked, "discard-locked", false, "replace locked assignments too")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer closeServer(deps)

	req := model.OptimizeRequest{Date: planDate, EmployeeIDs: planEmployees}
	if planNoLocked {
		f := false
		req.PreserveLockedAssignments = &f
	}
	res, err := deps.RunOptimize(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
