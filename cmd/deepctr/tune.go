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
	"sort"
	"time"

	"github.com/gorse-io/deepctr/common/log"
	"github.com/gorse-io/deepctr/common/monitor"
	"github.com/gorse-io/deepctr/config"
	"github.com/gorse-io/deepctr/model"
	"github.com/gorse-io/deepctr/model/ctr"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuneCommand = &cobra.Command{
	Use:       "tune dcn|nfm",
	Short:     "Tune hyper-parameters of a click-through rate model by TPE.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"dcn", "nfm"},
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd, args[0])
		if err != nil {
			return errors.Trace(err)
		}
		shutdown, err := setupTracing(cmd.Context(), conf)
		if err != nil {
			return errors.Trace(err)
		}
		defer shutdown()
		return runTune(cmd.Context(), args[0], conf, os.Stdout)
	},
}

func init() {
	config.AddFlags(tuneCommand.Flags())
	rootCommand.AddCommand(tuneCommand)
}

func runTune(ctx context.Context, modelName string, conf *config.Config, out io.Writer) error {
	data, err := loadDataset(&conf.Data, conf.Train.RandomState)
	if err != nil {
		return errors.Trace(err)
	}
	params := conf.ModelParams()
	if _, err = ctr.NewModel(modelName, params); err != nil {
		return errors.Trace(err)
	}
	tracer := monitor.NewTracer("deepctr")
	ctx, span := tracer.Start(ctx, "tune "+modelName, conf.Train.Trials)
	result, testScore, err := tune(ctx, span, modelName, params, conf, data)
	if err != nil {
		span.Fail(err)
	}
	span.End()
	if err != nil {
		return errors.Trace(err)
	}
	if err = renderParams(out, result.Params); err != nil {
		return errors.Trace(err)
	}
	if err = renderScores(out, map[string]ctr.Score{"valid": result.Score, "test": testScore}); err != nil {
		return errors.Trace(err)
	}
	return renderProgress(out, tracer.List())
}

// tune searches hyper-parameters on the validation set and evaluates the best
// ones on the test set.
func tune(ctx context.Context, span *monitor.Span, modelName string, params model.Params,
	conf *config.Config, data *splits) (ctr.SearchResult, ctr.Score, error) {
	start := time.Now()
	search := ctr.NewModelSearch(ctx, map[string]ctr.ModelCreator{
		modelName: func() ctr.Model {
			span.Add(1)
			return lo.Must(ctr.NewModel(modelName, params.Copy()))
		},
	}, data.train, data.valid, conf.FitConfig())
	result, err := search.Optimize("tune "+modelName, conf.Train.Trials)
	if err != nil {
		return ctr.SearchResult{}, ctr.Score{}, errors.Trace(err)
	}
	log.Logger().Info("complete tuning "+modelName,
		zap.Int("trials", conf.Train.Trials),
		zap.Duration("time", time.Since(start)))

	// evaluate best parameters on the test set
	testScore := ctr.Score{}
	if data.test.Count() > 0 {
		best := lo.Must(ctr.NewModel(result.Type, result.Params))
		if _, err = ctr.NewTrainer().Fit(ctx, best, data.train, data.valid, conf.FitConfig()); err != nil {
			return ctr.SearchResult{}, ctr.Score{}, errors.Trace(err)
		}
		if testScore, err = ctr.Evaluate(best, data.test); err != nil {
			return ctr.SearchResult{}, ctr.Score{}, errors.Trace(err)
		}
	}
	return result, testScore, nil
}

func renderParams(out io.Writer, params model.Params) error {
	names := lo.Map(lo.Keys(params), func(name model.ParamName, _ int) string { return string(name) })
	sort.Strings(names)
	table := tablewriter.NewWriter(out)
	table.Header("Param", "Value")
	for _, name := range names {
		if err := table.Append([]string{name, fmt.Sprint(params[model.ParamName(name)])}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

// renderProgress prints the tasks of a tracer with their status and elapsed
// time.
func renderProgress(out io.Writer, progress []monitor.Progress) error {
	table := tablewriter.NewWriter(out)
	table.Header("Task", "Status", "Progress", "Time")
	for _, p := range progress {
		status := string(p.Status)
		if p.Error != "" {
			status += ": " + p.Error
		}
		elapsed := lo.Ternary(p.FinishTime.IsZero(), time.Since(p.StartTime), p.FinishTime.Sub(p.StartTime))
		if err := table.Append([]string{
			p.Name,
			status,
			fmt.Sprintf("%d/%d", p.Count, p.Total),
			elapsed.Round(time.Millisecond).String(),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
