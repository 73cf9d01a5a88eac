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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorse-io/deepctr/common/log"
	"github.com/gorse-io/deepctr/common/monitor"
	"github.com/gorse-io/deepctr/config"
	"github.com/gorse-io/deepctr/model"
	"github.com/gorse-io/deepctr/model/ctr"
	"github.com/gorse-io/deepctr/storage/history"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.CloseLogger()
}

func newConfig(t *testing.T, modelName string, args ...string) *config.Config {
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.AddFlags(flagSet)
	require.NoError(t, flagSet.Parse(args))
	conf, err := config.LoadConfig(modelName, "", flagSet)
	require.NoError(t, err)
	return conf
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	historyPath := fmt.Sprintf("sqlite://%s/history.db", dir)
	conf := newConfig(t, "dcn",
		"--synthetic=300",
		"--epochs=2",
		"--batch-size=32",
		"--hidden-layers=16,8",
		"--history="+historyPath,
		"--plot="+filepath.Join(dir, "history.png"),
		"--metrics-file="+filepath.Join(dir, "metrics.prom"))
	var out bytes.Buffer
	require.NoError(t, runTrain(context.Background(), "dcn", conf, &out))
	assert.Contains(t, out.String(), "AUC")
	assert.Contains(t, out.String(), "valid")
	assert.Contains(t, out.String(), "test")
	assert.FileExists(t, filepath.Join(dir, "history.png"))
	metrics, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	assert.NoError(t, err)
	assert.Contains(t, string(metrics), `deepctr_train_epoch{model="DCN"} 2`)

	// history
	store, err := history.Open(historyPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background())
	assert.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "DCN", runs[0].Model)
	assert.Equal(t, history.StatusComplete, runs[0].Status)
	assert.Equal(t, 240, runs[0].TrainSize)
	assert.Equal(t, 30, runs[0].ValidSize)

	out.Reset()
	assert.NoError(t, listRuns(context.Background(), store, &out))
	assert.Contains(t, out.String(), runs[0].ID)
	out.Reset()
	assert.NoError(t, listEpochs(context.Background(), store, runs[0].ID, &out))
	assert.True(t, strings.HasPrefix(out.String(), runs[0].ID+" DCN complete\n"))
	epochs, err := store.GetEpochs(context.Background(), runs[0].ID)
	assert.NoError(t, err)
	assert.Len(t, epochs, 2)
	assert.True(t, errors.Is(listEpochs(context.Background(), store, "unknown", &out), errors.NotFound))
}

func TestTrainFailure(t *testing.T) {
	dir := t.TempDir()
	historyPath := fmt.Sprintf("sqlite://%s/history.db", dir)
	conf := newConfig(t, "nfm",
		"--synthetic=100",
		"--epochs=1",
		"--history="+historyPath)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runTrain(ctx, "nfm", conf, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)

	store, err := history.Open(historyPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(context.Background())
	assert.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicks.csv")
	var builder strings.Builder
	builder.WriteString("x,y,city,click\n")
	for i := 0; i < 100; i++ {
		city := []string{"a", "b", "c"}[i%3]
		builder.WriteString(fmt.Sprintf("%d,%d,%s,%d\n", i%7, i%5, city, i%2))
	}
	require.NoError(t, os.WriteFile(path, []byte(builder.String()), 0644))
	conf := newConfig(t, "dcn", "--csv="+path, "--header")
	data, err := loadDataset(&conf.Data, 0)
	assert.NoError(t, err)
	assert.Equal(t, 80, data.train.Count())
	assert.Equal(t, 10, data.test.Count())
	assert.Equal(t, 10, data.valid.Count())
	assert.Equal(t, 5, data.train.FieldDim())
}

func TestSampleDataset(t *testing.T) {
	conf := newConfig(t, "dcn", "--synthetic=300", "--sample=100")
	data, err := loadDataset(&conf.Data, 0)
	assert.NoError(t, err)
	assert.Equal(t, 80, data.train.Count())
	assert.Equal(t, 10, data.test.Count())
	assert.Equal(t, 10, data.valid.Count())

	// a sample larger than the dataset keeps every row
	conf = newConfig(t, "dcn", "--synthetic=50", "--sample=100")
	data, err = loadDataset(&conf.Data, 0)
	assert.NoError(t, err)
	assert.Equal(t, 50, data.train.Count()+data.test.Count()+data.valid.Count())
}

func TestNoDataSource(t *testing.T) {
	conf := newConfig(t, "dcn")
	_, err := loadDataset(&conf.Data, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestTune(t *testing.T) {
	conf := newConfig(t, "nfm",
		"--synthetic=200",
		"--epochs=1",
		"--batch-size=32",
		"--trials=2")
	var out bytes.Buffer
	require.NoError(t, runTune(context.Background(), "nfm", conf, &out))
	assert.Contains(t, out.String(), "EmbedDim")
	assert.Contains(t, out.String(), "valid")
	assert.Contains(t, out.String(), "tune nfm")
	assert.Contains(t, out.String(), "Complete")
	assert.Contains(t, out.String(), "2/2")
}

func TestRenderTables(t *testing.T) {
	var out bytes.Buffer
	assert.NoError(t, renderScores(&out, map[string]ctr.Score{
		"valid": {AUC: 0.75, LogLoss: 0.5},
		"test":  {AUC: 0.7},
	}))
	assert.Contains(t, out.String(), "0.7500")
	assert.Contains(t, out.String(), "0.7000")
	assert.Contains(t, out.String(), "0.5000")

	out.Reset()
	assert.NoError(t, renderParams(&out, model.Params{model.EmbedDim: 16, model.Optimizer: "sgd"}))
	assert.Contains(t, out.String(), "EmbedDim")
	assert.Contains(t, out.String(), "16")
	assert.Contains(t, out.String(), "sgd")

	out.Reset()
	start := time.Now()
	assert.NoError(t, renderProgress(&out, []monitor.Progress{{
		Name:       "tune dcn",
		Status:     monitor.StatusFailed,
		Error:      "diverged",
		Count:      1,
		Total:      4,
		StartTime:  start,
		FinishTime: start.Add(1500 * time.Millisecond),
	}}))
	assert.Contains(t, out.String(), "tune dcn")
	assert.Contains(t, out.String(), "Failed: diverged")
	assert.Contains(t, out.String(), "1/4")
	assert.Contains(t, out.String(), "1.5s")
}

func TestTrainCommand(t *testing.T) {
	dir := t.TempDir()
	rootCommand.SetArgs([]string{"train", "dcn",
		"--synthetic=200",
		"--epochs=1",
		"--batch-size=32",
		"--hidden-layers=8",
		"--history=" + fmt.Sprintf("sqlite://%s/history.db", dir),
	})
	assert.NoError(t, rootCommand.ExecuteContext(context.Background()))
	log.CloseLogger()

	rootCommand.SetArgs([]string{"train", "fm", "--synthetic=200"})
	assert.Error(t, rootCommand.ExecuteContext(context.Background()))
	log.CloseLogger()
}
