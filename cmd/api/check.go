package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"carenav/internal/compliance"
	"carenav/internal/model"
)

var (
	checkEmployee string
	checkStart    string
	checkEnd      string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate labor-time rules for one employee and print the result",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkEmployee, "employee", "", "employee id")
	checkCmd.Flags().StringVar(&checkStart, "start", "", "range start (YYYY-MM-DD), default 30 days before end")
	checkCmd.Flags().StringVar(&checkEnd, "end", "", "range end (YYYY-MM-DD), default today")
	_ = checkCmd.MarkFlagRequired("employee")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	end := time.Now()
	if checkEnd != "" {
		t, err := time.ParseInLocation(model.DateLayout, checkEnd, time.Local)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		end = t
	}
	start := end.Add(-compliance.DefaultLookback)
	if checkStart != "" {
		t, err := time.ParseInLocation(model.DateLayout, checkStart, time.Local)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		start = t
	}

	deps, err := setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer closeServer(deps)

	res, err := deps.Compliance.CheckCompliance(ctx, checkEmployee, start, end)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
