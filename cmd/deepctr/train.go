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
	"github.com/gorse-io/deepctr/dataset"
	"github.com/gorse-io/deepctr/model"
	"github.com/gorse-io/deepctr/model/ctr"
	"github.com/gorse-io/deepctr/storage/history"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:       "train dcn|nfm",
	Short:     "Train a click-through rate model.",
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
		return runTrain(cmd.Context(), args[0], conf, os.Stdout)
	},
}

func init() {
	config.AddFlags(trainCommand.Flags())
	rootCommand.AddCommand(trainCommand)
}

// splits are the training, validation and test sets of a run.
type splits struct {
	train *dataset.Dataset
	valid *dataset.Dataset
	test  *dataset.Dataset
}

func loadDataset(conf *config.DataConfig, seed int64) (*splits, error) {
	var (
		data *dataset.Dataset
		err  error
	)
	switch {
	case conf.CSV != "":
		log.Logger().Info("load csv file", zap.String("path", conf.CSV))
		data, err = dataset.LoadCSV(conf.CSV, conf.Separator, conf.Header, conf.LabelColumn)
	case conf.LibFM != "":
		log.Logger().Info("load libfm file", zap.String("path", conf.LibFM))
		data, err = dataset.LoadLibFM(conf.LibFM)
	case conf.Synthetic > 0:
		log.Logger().Info("generate synthetic dataset",
			zap.Int("n", conf.Synthetic), zap.Int("dim", conf.SyntheticDim))
		data = dataset.Synthetic(conf.Synthetic, conf.SyntheticDim, seed)
	default:
		return nil, errors.NotValidf("no data source, one of --csv, --libfm and --synthetic is required")
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if conf.Sample > 0 && conf.Sample < data.Count() {
		log.Logger().Info("sample dataset", zap.Int("n", conf.Sample), zap.Int("rows", data.Count()))
		data = data.Sample(conf.Sample, seed)
	}
	train, test, valid, err := data.Split(conf.TrainRatio, conf.TestRatio, seed)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("split dataset",
		zap.Int("n", data.Count()),
		zap.Int("field_dim", data.FieldDim()),
		zap.Int("positive", data.PositiveCount()),
		zap.Int("negative", data.NegativeCount()),
		zap.Int("train", train.Count()),
		zap.Int("valid", valid.Count()),
		zap.Int("test", test.Count()))
	return &splits{train: train, valid: valid, test: test}, nil
}

// historyRecorder saves the result of every epoch to the history store.
type historyRecorder struct {
	store *history.Store
	runID string
}

func (r *historyRecorder) Record(ctx context.Context, epoch int, loss float32, score ctr.Score) error {
	return r.store.AddEpoch(ctx, history.Epoch{
		RunID:     r.runID,
		Epoch:     epoch,
		Loss:      loss,
		AUC:       score.AUC,
		Precision: score.Precision,
		Recall:    score.Recall,
		Accuracy:  score.Accuracy,
		LogLoss:   score.LogLoss,
		Time:      time.Now(),
	})
}

func paramsMap(params model.Params) map[string]any {
	return lo.MapKeys(params, func(_ any, name model.ParamName) string {
		return string(name)
	})
}

func runTrain(ctx context.Context, modelName string, conf *config.Config, out io.Writer) error {
	data, err := loadDataset(&conf.Data, conf.Train.RandomState)
	if err != nil {
		return errors.Trace(err)
	}
	m, err := ctr.NewModel(modelName, conf.ModelParams())
	if err != nil {
		return errors.Trace(err)
	}
	tracer := monitor.NewTracer("deepctr")
	ctx, span := tracer.Start(ctx, "train "+m.Name(), 1)
	defer span.End()

	// open history
	fitConfig := conf.FitConfig()
	var (
		store *history.Store
		runID string
	)
	if conf.Output.History != "" {
		if store, err = history.Open(conf.Output.History); err != nil {
			return errors.Trace(err)
		}
		defer store.Close()
		if runID, err = store.CreateRun(context.WithoutCancel(ctx), m.Name(), paramsMap(m.GetParams()),
			data.train.Count(), data.valid.Count()); err != nil {
			return errors.Trace(err)
		}
		fitConfig.SetRecorder(&historyRecorder{store: store, runID: runID})
		log.Logger().Info("create run", zap.String("run_id", runID))
	}

	// train and test
	trainer := ctr.NewTrainer()
	start := time.Now()
	validScore, err := trainer.Fit(ctx, m, data.train, data.valid, fitConfig)
	var testScore ctr.Score
	if err == nil && data.test.Count() > 0 {
		testScore, err = ctr.Evaluate(m, data.test)
	}
	if store != nil {
		if finishErr := store.FinishRun(context.WithoutCancel(ctx), runID, testScore.AUC, err); finishErr != nil {
			log.Logger().Error("failed to finish run", zap.String("run_id", runID), zap.Error(finishErr))
		}
	}
	if err != nil {
		span.Fail(err)
		return errors.Trace(err)
	}
	log.Logger().Info("complete training "+m.Name(),
		zap.Duration("time", time.Since(start)),
		zap.Float32("valid_auc", validScore.AUC),
		zap.Float32("test_auc", testScore.AUC))
	if err = renderScores(out, map[string]ctr.Score{"valid": validScore, "test": testScore}); err != nil {
		return errors.Trace(err)
	}

	// outputs
	if conf.Output.Plot != "" {
		if err = ctr.PlotHistory(trainer.History(), m.Name(), conf.Output.Plot); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save learning curves", zap.String("path", conf.Output.Plot))
	}
	if conf.Output.MetricsFile != "" {
		if err = monitor.WriteMetrics(conf.Output.MetricsFile); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save metrics", zap.String("path", conf.Output.MetricsFile))
	}
	return nil
}

func renderScores(out io.Writer, scores map[string]ctr.Score) error {
	names := lo.Keys(scores)
	sort.Strings(names)
	table := tablewriter.NewWriter(out)
	table.Header("Set", "AUC", "Precision", "Recall", "Accuracy", "LogLoss")
	for _, name := range names {
		score := scores[name]
		if err := table.Append([]string{
			name,
			fmt.Sprintf("%.4f", score.AUC),
			fmt.Sprintf("%.4f", score.Precision),
			fmt.Sprintf("%.4f", score.Recall),
			fmt.Sprintf("%.4f", score.Accuracy),
			fmt.Sprintf("%.4f", score.LogLoss),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
