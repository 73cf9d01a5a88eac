// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorse-io/deepctr/storage/history"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var historyCommand = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List training runs, or epochs of a run.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("history")
		store, err := history.Open(path)
		if err != nil {
			return errors.Trace(err)
		}
		defer store.Close()
		if len(args) == 0 {
			return listRuns(cmd.Context(), store, os.Stdout)
		}
		return listEpochs(cmd.Context(), store, args[0], os.Stdout)
	},
}

func init() {
	historyCommand.Flags().String("history", "sqlite://history.db", "database of training history")
	rootCommand.AddCommand(historyCommand)
}

func listRuns(ctx context.Context, store *history.Store, out io.Writer) error {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	table := tablewriter.NewWriter(out)
	table.Header("ID", "Model", "Status", "Train", "Valid", "Test AUC", "Start", "Duration")
	for _, run := range runs {
		duration := ""
		if !run.EndTime.IsZero() {
			duration = run.EndTime.Sub(run.StartTime).Round(time.Millisecond).String()
		}
		if err := table.Append([]string{
			run.ID,
			run.Model,
			run.Status,
			fmt.Sprint(run.TrainSize),
			fmt.Sprint(run.ValidSize),
			fmt.Sprintf("%.4f", run.TestAUC),
			run.StartTime.Local().Format(time.DateTime),
			duration,
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func listEpochs(ctx context.Context, store *history.Store, runID string, out io.Writer) error {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return errors.Trace(err)
	}
	epochs, err := store.GetEpochs(ctx, runID)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "%s %s %s\n", run.ID, run.Model, run.Status)
	if run.Error != "" {
		fmt.Fprintln(out, run.Error)
	}
	table := tablewriter.NewWriter(out)
	table.Header("Epoch", "Loss", "AUC", "Precision", "Recall", "Accuracy", "LogLoss")
	for _, epoch := range epochs {
		if err := table.Append([]string{
			fmt.Sprint(epoch.Epoch),
			fmt.Sprintf("%.4f", epoch.Loss),
			fmt.Sprintf("%.4f", epoch.AUC),
			fmt.Sprintf("%.4f", epoch.Precision),
			fmt.Sprintf("%.4f", epoch.Recall),
			fmt.Sprintf("%.4f", epoch.Accuracy),
			fmt.Sprintf("%.4f", epoch.LogLoss),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
